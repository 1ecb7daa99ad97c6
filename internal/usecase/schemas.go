package usecase

import (
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

// placeSchema constrains place classification output.
var placeSchema = ports.Schema{
	Name: "hpl_place_classification",
	Document: []byte(`{
  "type": "object",
  "properties": {
    "primary_category": {"type": "string"},
    "secondary_categories": {"type": "array", "items": {"type": "string"}},
    "tags": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "price_tier": {"type": "string", "enum": ["", "$", "$$", "$$$", "$$$$"]},
    "family_friendly": {"type": "boolean"},
    "pet_friendly": {"type": "boolean"},
    "outdoor_seating": {"type": "boolean"},
    "wheelchair_accessible": {"type": "boolean"},
    "reservations": {"type": "boolean"},
    "good_for_groups": {"type": "boolean"}
  },
  "required": ["primary_category", "confidence"],
  "additionalProperties": false
}`),
}

// genericSchema constrains classification of events and anything that is not a place.
var genericSchema = ports.Schema{
	Name: "hpl_generic_classification",
	Document: []byte(`{
  "type": "object",
  "properties": {
    "city_slug": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "categories": {"type": "array", "items": {"type": "string"}},
    "tags": {"type": "array", "items": {"type": "string"}},
    "is_free": {"type": "boolean"},
    "audience": {"type": "string", "enum": ["all_ages", "adults", "families", "kids"]}
  },
  "required": ["city_slug", "confidence"],
  "additionalProperties": false
}`),
}

// amenityFlags are the boolean classification fields copied to published places.
var amenityFlags = []string{
	"family_friendly",
	"pet_friendly",
	"outdoor_seating",
	"wheelchair_accessible",
	"reservations",
	"good_for_groups",
}

func schemaFor(target domain.TargetType) ports.Schema {
	if target.IsPlace() {
		return placeSchema
	}
	return genericSchema
}
