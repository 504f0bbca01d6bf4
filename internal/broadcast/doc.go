// Package broadcast fans detection events out to independent subscribers.
//
// The publishing process runs an embedded NATS server on a well-known port and
// publishes each event as JSON on camwatch.events.<camera_id>. Delivery is
// core NATS: at most once, no replay for late joiners, and subscribers that
// fall behind have messages dropped by the transport. Subscribers apply their
// own throttle and dedup policy with a private Filter.
package broadcast
