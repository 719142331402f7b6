// Package server exposes the parameter engine over HTTP.
//
// Routes:
//
//	GET  /healthz      liveness
//	GET  /api/state    read the page URL through the server adapter
//	POST /api/apply    run one operation against a URL, statelessly
//	GET  /ws           client router sessions (WebSocket)
//	GET  /metrics      Prometheus, when metrics are enabled
//
// /api/state takes the page URL from its url query parameter, then the
// configured header (X-URL by default), then the Referer:
//
//	GET /api/state?url=%2Fproducts%3Fview%3Dgrid&parse=1
//
//	{"url": "/products?view=grid", "pathname": "/products",
//	 "params": {"view": "grid"}, "source": "header"}
//
// /api/apply replays the operation on a fresh browser history positioned
// at url and reports where it navigated:
//
//	POST /api/apply
//	{"url": "/products?tags=a", "request": {"op": "add", "key": "tags", "values": ["b"]}}
//
//	{"url": "/products?tags=a&tags=b", "navigated": true,
//	 "result": {"op": "add", "value": null}}
package server
