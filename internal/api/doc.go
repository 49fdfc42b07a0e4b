// Package api hosts the HTTP server, middleware and JSON handlers. Notable
// routes:
//   - POST /siteService/crawlSite, /site/crawl for synchronous enrichment.
//   - POST /site/crawl_async for webhook-delivered enrichment.
//   - POST /siteService/submitSite, getTodoSite, crawlTodoSite for the
//     submission queue.
//   - GET /healthz, /readyz for probes and GET /metrics for Prometheus.
package api
