// Package plans implements the plan catalogue: typed models for plan and
// detail documents, a service layer over a KV store, the cached key index,
// and the JSON deep-merge used by partial updates.
package plans

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// PlanType identifies the kind of plan.
type PlanType string

const (
	PlanTypeBooth   PlanType = "booth"
	PlanTypeGeneral PlanType = "general"
	PlanTypeStage   PlanType = "stage"
	PlanTypeLabo    PlanType = "labo"
)

// boothCategories are the categories a booth plan may carry.
var boothCategories = map[string]bool{
	"main_rice":         true,
	"main_noodle_flour": true,
	"main_skewer_grill": true,
	"main_hot_snack":    true,
	"main_soup":         true,
	"main_world_street": true,
	"sweet_japanese":    true,
	"sweet_western":     true,
	"sweet_cold":        true,
	"sweet_snack":       true,
	"sweet_drink":       true,
	"sweet_world":       true,
	"drink":             true,
}

// generalCategories are the categories a general plan may carry.
var generalCategories = map[string]bool{
	"play":         true,
	"display":      true,
	"performance":  true,
	"cafe":         true,
	"rest":         true,
	"presentation": true,
}

// Plan is a plan document as stored and served. Type-dependent fields
// (Categories, IsLabTour) are flattened onto the struct the way the wire
// format carries them.
type Plan struct {
	ID               string       `json:"id"`
	Type             PlanType     `json:"type" validate:"required,oneof=booth general stage labo"`
	Categories       []string     `json:"categories,omitempty"`
	IsLabTour        *bool        `json:"is_lab_tour,omitempty"`
	OrganizationName string       `json:"organization_name" validate:"required"`
	PlanName         string       `json:"plan_name" validate:"required"`
	Description      string       `json:"description"`
	IsChildFriendly  bool         `json:"is_child_friendly"`
	IsRecommended    bool         `json:"is_recommended"`
	Schedule         Schedule     `json:"schedule"`
	Location         []Location   `json:"location" validate:"dive"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
}

// Schedule holds the per-day time slots of a plan.
type Schedule struct {
	Day1 []DaySchedule `json:"day1"`
	Day2 []DaySchedule `json:"day2"`
}

// DaySchedule is a single time slot.
type DaySchedule struct {
	StartTime Time `json:"start_time"`
	EndTime   Time `json:"end_time"`
}

// Location is where a plan takes place. Type is "indoor" (building + room)
// or "outdoor" (name).
type Location struct {
	Type     string `json:"type" validate:"required,oneof=indoor outdoor"`
	Building string `json:"building,omitempty"`
	Room     string `json:"room,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Coordinates is an optional map position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Details is the detail document stored alongside a plan.
type Details struct {
	Products       Products `json:"products"`
	AdditionalInfo *string  `json:"additional_info"`
}

// Products lists what a plan offers.
type Products struct {
	Items       []ProductItem `json:"items" validate:"dive"`
	Description string        `json:"description"`
}

// ProductItem is a single product. A nil price means "not priced".
type ProductItem struct {
	Name    string          `json:"name" validate:"required"`
	Price   *float64        `json:"price"`
	Options []ProductOption `json:"options" validate:"dive"`
}

// ProductOption is a variant of a product item.
type ProductOption struct {
	Name  string   `json:"name" validate:"required"`
	Price *float64 `json:"price"`
}

var validate = validator.New()

// Validate checks structural validity plus the type-dependent rules the
// struct tags cannot express.
func (p *Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}

	switch p.Type {
	case PlanTypeBooth:
		for _, c := range p.Categories {
			if !boothCategories[c] {
				return fmt.Errorf("invalid booth category: %s", c)
			}
		}
		if p.IsLabTour != nil {
			return fmt.Errorf("is_lab_tour is only valid for labo plans")
		}
	case PlanTypeGeneral:
		for _, c := range p.Categories {
			if !generalCategories[c] {
				return fmt.Errorf("invalid general category: %s", c)
			}
		}
		if p.IsLabTour != nil {
			return fmt.Errorf("is_lab_tour is only valid for labo plans")
		}
	case PlanTypeStage:
		if len(p.Categories) > 0 {
			return fmt.Errorf("categories are not valid for stage plans")
		}
		if p.IsLabTour != nil {
			return fmt.Errorf("is_lab_tour is only valid for labo plans")
		}
	case PlanTypeLabo:
		if len(p.Categories) > 0 {
			return fmt.Errorf("categories are not valid for labo plans")
		}
		if p.IsLabTour == nil {
			return fmt.Errorf("is_lab_tour is required for labo plans")
		}
	}

	for _, loc := range p.Location {
		switch loc.Type {
		case "indoor":
			if loc.Building == "" || loc.Room == "" {
				return fmt.Errorf("indoor location requires building and room")
			}
		case "outdoor":
			if loc.Name == "" {
				return fmt.Errorf("outdoor location requires name")
			}
		}
	}

	for _, slot := range append(append([]DaySchedule{}, p.Schedule.Day1...), p.Schedule.Day2...) {
		if !slot.StartTime.Before(slot.EndTime) {
			return fmt.Errorf("schedule slot must end after it starts")
		}
	}

	return nil
}

// Validate checks structural validity of a detail document.
func (d *Details) Validate() error {
	return validate.Struct(d)
}
