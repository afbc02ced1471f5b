// Package server exposes an App over a loopback HTTP API for a browser
// front end.
//
// Routes are registered on a gorilla/mux router and exchange JSON. Review
// requests block until the batch finishes; progress and chat changes are
// pushed to every client connected to /api/ws through a [Hub] subscribed to
// the App's events.
package server
