// Package httpclient provides the shared HTTP transport used by the query
// client and the metrics publisher. Connection pooling is sized for many
// workers hammering one origin.
package httpclient
