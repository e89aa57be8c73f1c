// Package connectors holds the adapters that talk to remote classroom
// platforms. Each connector implements driven.RemoteClient and
// driven.RemoteClientFactory and normalises remote payloads into
// domain.RemoteRecord values before they reach the sync engine.
package connectors
