package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys shared by the catalog use cases.
const (
	AttrCenterLat    = attribute.Key("dineradar.center.lat")
	AttrCenterLng    = attribute.Key("dineradar.center.lng")
	AttrRadiusKm     = attribute.Key("dineradar.radius_km")
	AttrPersisted    = attribute.Key("dineradar.persisted.count")
	AttrLive         = attribute.Key("dineradar.live.count")
	AttrMerged       = attribute.Key("dineradar.merged.count")
	AttrLiveDegraded = attribute.Key("dineradar.live.degraded")
	AttrPostalCode   = attribute.Key("dineradar.postal_code")
)
