// Package middleware provides HTTP middleware for the thumbnail service.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with the thumbnail tier
//     that answered each request
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
package middleware
