// Package clientip extracts real client IP addresses from HTTP requests.
//
// Fleet instances run behind load balancers, so the socket peer is rarely the
// client. The address returned here feeds session fingerprints and the IP
// recorded on each session.
//
// # Header Priority
//
// The package checks headers in this specific order:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (most common proxy header)
//  4. X-Real-IP (nginx and other proxies)
//  5. RemoteAddr (direct connection)
//
// This priority order ensures that the most reliable sources are checked first.
//
// # Usage
//
//	ip := clientip.GetIP(r)
//	fp := fingerprint.Generate(r.UserAgent(), r.Header.Get("Accept-Language"), ip)
//
// # Validation and Security
//
// All IP addresses are validated and normalized:
//   - Invalid IP strings are rejected
//   - IPv6 addresses are properly handled
//   - The special address 0.0.0.0 is rejected (indicates no valid client IP)
//   - All IPs are normalized using Go's net.IP.String() method
//
// X-Forwarded-For handling:
//
//	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
//	// The package correctly extracts the leftmost (original client) IP
//	// and validates it before returning
//
// # Error Handling
//
// GetIP never fails. Malformed headers are skipped, and when no valid IP can
// be determined the raw RemoteAddr is returned.
//
// # Proxy Configuration
//
// When deploying behind proxies, ensure they set the appropriate headers:
//   - Nginx: proxy_set_header X-Real-IP $remote_addr;
//   - Apache: RequestHeader set X-Forwarded-For %h
//   - Cloudflare: Automatically sets CF-Connecting-IP
//   - DigitalOcean Load Balancer: Automatically sets DO-Connecting-IP
package clientip
