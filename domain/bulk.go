package domain

type BulkAction string

const (
	BulkIndex  BulkAction = "index"
	BulkDelete BulkAction = "delete"
)

// BulkOperation is one upsert or delete in a bulk write.
type BulkOperation struct {
	Action   BulkAction
	Entity   EntityType
	ID       string
	Document Document
}

func IndexOperation(doc Document) BulkOperation {
	return BulkOperation{Action: BulkIndex, Entity: doc.EntityType(), ID: doc.DocumentID(), Document: doc}
}

func DeleteOperation(entity EntityType, id string) BulkOperation {
	return BulkOperation{Action: BulkDelete, Entity: entity, ID: id}
}

// NearbyParams selects venues around a point.
type NearbyParams struct {
	Lat         float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon         float64 `json:"lon" validate:"gte=-180,lte=180"`
	RadiusKm    float64 `json:"radius_km" validate:"gt=0,lte=100"`
	CapacityMin *int    `json:"capacity_min,omitempty" validate:"omitempty,gte=0"`
	Page        int     `json:"page" validate:"gte=0"`
	Limit       int     `json:"limit" validate:"gte=0"`
}

// HealthStatus is the outcome of a health probe.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}
