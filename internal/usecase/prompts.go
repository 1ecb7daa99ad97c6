package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"HappyPlaceLocal/internal/domain"
)

const (
	placeClassifyPrompt = `You classify scraped local businesses for a city guide.
Return the primary category (for example Restaurant, Cafe, Park, Museum), any secondary categories,
short lowercase tags, the price tier when it can be inferred, and the amenity flags you can support
from the data. Set confidence between 0 and 1. Leave a field out rather than guess.`

	genericClassifyPrompt = `You classify scraped listings for a city guide.
Return the city slug (lowercase, hyphenated) the listing belongs to, the categories and tags that
describe it, whether it is free, and the intended audience. Set confidence between 0 and 1.`

	eventRewritePrompt = `Write a casual, upbeat description of this listing in markdown, no more than 120 words.
Mention when and where it happens if the data includes it. Do not invent facts.`
)

func classifyPrompt(target domain.TargetType) string {
	if target.IsPlace() {
		return placeClassifyPrompt
	}
	return genericClassifyPrompt
}

func rewritePrompt(target domain.TargetType, classification domain.Payload) string {
	if !target.IsPlace() {
		return eventRewritePrompt
	}

	category := classification.String("primary_category")
	if category == "" {
		category = "local spot"
	}
	tags := strings.Join(classification.Strings("tags"), ", ")
	if tags == "" {
		tags = "none"
	}

	return fmt.Sprintf(`You write for Happy Place, a friendly local guide.
Write a warm, welcoming 80-150 word description in markdown of this %s.
Work in these tags where they fit: %s.
Use only facts present in the data. No headings, no lists of hours.`, category, tags)
}

// payloadMessages pairs a system prompt with the payload as JSON user content.
func payloadMessages(system string, payload domain.Payload) ([]domain.Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: string(raw)},
	}, nil
}
