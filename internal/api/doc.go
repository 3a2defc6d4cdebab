// Package api provides the HTTP REST API and WebSocket server for DeviceHub Core.
//
// It exposes the device catalogue, device images, account registration and
// login, and the take/return lending workflow. Inventory events are pushed
// to WebSocket clients through the Hub.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
