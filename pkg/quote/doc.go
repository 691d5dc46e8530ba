// Package quote serves pricing engines over HTTP.
//
// A one-shot quote prices a complete selection in a single request:
//
//	POST /quote
//	{"plan": "pro", "addons": [{"code": "seats", "quantity": 3}], "coupon": "SAVE10",
//	 "address": {"country": "US", "postal_code": "10001"}, "currency": "USD"}
//
// A checkout session keeps an Engine alive between requests so a UI can
// update one field at a time:
//
//	POST   /sessions                  create a session
//	GET    /sessions/{id}             selection and snapshot
//	POST   /sessions/{id}/set         {"type": "addon", "code": "seats", "quantity": "2"}
//	POST   /sessions/{id}/remove      {"type": "coupon", "any": true}
//	POST   /sessions/{id}/reset
//	DELETE /sessions/{id}
//
// Sessions live in a bounded store: the least recently used session is
// dropped when the capacity is reached and idle sessions expire after the
// configured TTL.
//
// Every response uses the same envelope:
//
//	{"code": "quote", "data": {...}}
//	{"code": "invalid-addon", "error": {"code": "invalid-addon", "message": "...",
//	 "details": {"plan_code": "pro", "addon_code": "x"}}}
//
// Pricing usage errors map to 422, not-found to 404, in-progress to 409 and
// resolver failures to 502.
package quote
