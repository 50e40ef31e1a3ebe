package vehicle

import "strings"

// Tribool is the result of decoding a vendor status code: on, off, or
// unknown when the field is absent or unintelligible.
type Tribool int

const (
	Unknown Tribool = iota
	Off
	On
)

// Bool reports the decoded value; the second return is false for Unknown.
func (t Tribool) Bool() (bool, bool) {
	switch t {
	case On:
		return true, true
	case Off:
		return false, true
	}
	return false, false
}

// FieldKey identifies a vendor status field by its status group and name.
type FieldKey struct {
	Group string
	Field string
}

// DecodeFunc turns a raw vendor status code into a Tribool.
type DecodeFunc func(raw string) Tribool

// Interpretations is a declarative table mapping status fields to decode
// functions, shared by all entity adapters. Several vendor code mappings are
// guesses (the cloud documents none of them); keeping them in one table that
// Override can replace keeps the guesswork adjustable instead of hardening
// it across a dozen entities.
type Interpretations map[FieldKey]DecodeFunc

// Override replaces the decode function for one field.
func (in Interpretations) Override(group, field string, fn DecodeFunc) {
	in[FieldKey{Group: group, Field: field}] = fn
}

// Decode looks up the field under additionalVehicleStatus.<group>.<field>
// and decodes it. An absent field is Unknown. Fields without a table entry
// fall back to the generic rule: "1" means engaged/locked/on, except for
// *OpenStatus fields where "1" means open and therefore Off/unlocked.
func (in Interpretations) Decode(st Status, group, field string) Tribool {
	raw, ok := st.String("additionalVehicleStatus", group, field)
	if !ok {
		return Unknown
	}
	if fn, ok := in[FieldKey{Group: group, Field: field}]; ok {
		return fn(raw)
	}
	return genericDecode(field, raw)
}

func genericDecode(field, raw string) Tribool {
	engaged := raw == "1"
	if strings.HasSuffix(field, "OpenStatus") {
		engaged = !engaged
	}
	if engaged {
		return On
	}
	return Off
}

// DefaultInterpretations returns the stock decode table. Entries marked as
// guesses mirror codes observed from real vehicles, not vendor docs.
func DefaultInterpretations() Interpretations {
	return Interpretations{
		// chargerState: 1 and 2 both observed while energy was flowing (guess).
		{Group: "electricVehicleStatus", Field: "chargerState"}: func(raw string) Tribool {
			switch raw {
			case "1", "2":
				return On
			case "":
				return Unknown
			}
			return Off
		},
		// statusOfChargerConnection: any non-zero code means a cable is
		// seated, including fault codes (guess).
		{Group: "electricVehicleStatus", Field: "statusOfChargerConnection"}: func(raw string) Tribool {
			switch raw {
			case "":
				return Unknown
			case "0":
				return Off
			}
			return On
		},
		// curtainOpenStatus: 1 closed, 2 open (guess). On = open.
		{Group: "climateStatus", Field: "curtainOpenStatus"}: func(raw string) Tribool {
			switch raw {
			case "1":
				return Off
			case "2":
				return On
			}
			return Unknown
		},
		// preClimateActive arrives as a boolean or "true"/"false" string.
		{Group: "climateStatus", Field: "preClimateActive"}: func(raw string) Tribool {
			switch strings.ToLower(raw) {
			case "true", "1":
				return On
			case "false", "0":
				return Off
			}
			return Unknown
		},
		// Warning fields report 0 for "no warning"; any other code is a
		// warning level.
		{Group: "maintenanceStatus", Field: "washerFluidLevelStatus"}: warningDecode,
	}
}

func warningDecode(raw string) Tribool {
	switch raw {
	case "":
		return Unknown
	case "0":
		return Off
	}
	return On
}

// WarningDecode exposes the 0/non-zero warning rule for table rows that
// cover the tyre warning fields.
func WarningDecode(raw string) Tribool { return warningDecode(raw) }
