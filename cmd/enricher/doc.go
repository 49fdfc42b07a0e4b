// Package main hosts the site-enricher service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the enrichment, async-crawl and
//     submission-queue routes behind a bearer secret, plus health, readiness and
//     Prometheus endpoints.
//   - Enrichment: internal/enrich.Orchestrator crawls a URL (colly probe,
//     readability extraction, chromedp promotion for thin client-rendered
//     pages), runs the language-model stages in internal/llm and upserts the
//     record into the configured store (memory, Postgres or MongoDB).
//   - Async delivery: /site/crawl_async enqueues onto a bounded in-memory queue
//     drained by a fixed worker pool; each result is POSTed to the caller's
//     webhook once.
//   - Submission queue: submitted URLs wait as pending records; the scheduler
//     drains a batch on every interval and /siteService/crawlTodoSite drains on
//     demand.
//   - Optional side effects: raw HTML archived to memory, local disk or GCS, and
//     a Pub/Sub event per stored record.
//
// Quick checklist:
//   - Configure env vars: ENRICHER_AUTH_SECRET (or AUTH_SECRET), the LLM source
//     and key (API_SOURCE, GROQ_API_KEY / OPENROUTER_API_KEY), the stage prompts
//     (DETAIL_SYS_PROMPT, TAG_SELECTOR_SYS_PROMPT, LANGUAGE_SYS_PROMPT) and
//     ENRICHER_STORAGE_BACKEND with its DSN or URI.
//   - Run locally: go run ./cmd/enricher -config config.yaml.
//   - The process reacts to SIGTERM by stopping HTTP, the scheduler and the
//     callback workers, then closing stores.
package main
