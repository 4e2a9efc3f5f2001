// Package http serves the public storefront API for SoleStyle.
//
// # Endpoints
//
//	GET    /api/products              list (?category=<name|all>, ?q=<search>)
//	GET    /api/products/{id}         single product
//	GET    /api/hero                  hero products in display order
//	GET    /api/categories            category tree
//	POST   /api/auth/register         create account and session
//	POST   /api/auth/login            verify password; unknown email -> 404 new_user
//	POST   /api/auth/logout           clear session
//	GET    /api/session               current session user
//	PUT    /api/users/{email}/style   set style preference
//	POST   /api/contact               submit contact form
//	GET|POST|DELETE /api/users/{id}/wishlist[/{productId}]
//	                                  GET with productId reports {"contains": bool}
//	GET    /api/users/{id}/wishlist/price-drops
//	GET|POST|PUT|DELETE /api/users/{id}/cart
//	GET    /api/events                websocket change notifications
//	GET    /health, /metrics
//
// Routes under /api/users/ require a session whose user matches the path
// id or email: 401 without a session, 403 for another user.
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - records duration and status
//  2. RequestIDMiddleware - extracts or generates X-Request-ID and enriches the logger
//  3. DNSRebindingProtection - validates the Origin header on /api routes
//  4. Handler
//
// The admin API is mounted under /admin/ when configured and carries its
// own localhost-only protection.
package http
