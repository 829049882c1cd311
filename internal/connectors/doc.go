// Package connectors holds clients for remote record sources.
// Each connector implements driven.CatalogClient for one source;
// the catalog subpackage speaks the marketplace HTTP API.
package connectors
