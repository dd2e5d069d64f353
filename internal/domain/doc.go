package domain

// Package domain contains the core business concepts for the map-poster service.
// Keep this package free of transport (HTTP) and infrastructure (Redis/Nominatim/Overpass) concerns.
