package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tbourn/go-location-broker/internal/domain"
)

// CoerceFloat converts a decoded JSON value to float64. It accepts numbers
// (including json.Number and Go numeric kinds), numeric strings with
// surrounding spaces, and booleans (true=1, false=0). Anything else, and
// strings that do not parse, report false.
func CoerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// CoerceString returns any present non-null value as a string. Strings are
// returned verbatim; other scalars use their JSON text.
func CoerceString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

type floatSetter func(tp *domain.Trackpoint, v float64)

func fp(v float64) *float64 { return &v }

func ip(v float64) *int {
	n := int(math.Round(v))
	return &n
}

// floatFields maps destination field names to setters. Integer fields round
// to the nearest whole number.
var floatFields = map[string]floatSetter{
	"lat":      func(tp *domain.Trackpoint, v float64) { tp.Lat = v },
	"lon":      func(tp *domain.Trackpoint, v float64) { tp.Lon = v },
	"speed":    func(tp *domain.Trackpoint, v float64) { tp.Speed = fp(v) },
	"course":   func(tp *domain.Trackpoint, v float64) { tp.Course = fp(v) },
	"ele":      func(tp *domain.Trackpoint, v float64) { tp.Ele = fp(v) },
	"hacc":     func(tp *domain.Trackpoint, v float64) { tp.HAcc = fp(v) },
	"vacc":     func(tp *domain.Trackpoint, v float64) { tp.VAcc = fp(v) },
	"hdop":     func(tp *domain.Trackpoint, v float64) { tp.HDOP = fp(v) },
	"vdop":     func(tp *domain.Trackpoint, v float64) { tp.VDOP = fp(v) },
	"pdop":     func(tp *domain.Trackpoint, v float64) { tp.PDOP = fp(v) },
	"tdop":     func(tp *domain.Trackpoint, v float64) { tp.TDOP = fp(v) },
	"sat":      func(tp *domain.Trackpoint, v float64) { tp.Sat = ip(v) },
	"satavail": func(tp *domain.Trackpoint, v float64) { tp.SatAvail = ip(v) },
	"batt":     func(tp *domain.Trackpoint, v float64) { tp.Batt = fp(v) },
}

var stringFields = map[string]func(tp *domain.Trackpoint, v string){
	"conn": func(tp *domain.Trackpoint, v string) { tp.Conn = &v },
	"tid":  func(tp *domain.Trackpoint, v string) { tp.TID = &v },
}

// SetFloatField copies payload[key] into the record field named field when
// the value coerces to a finite number. It reports whether a value was set.
func SetFloatField(tp *domain.Trackpoint, payload map[string]any, key, field string) bool {
	set, ok := floatFields[field]
	if !ok {
		return false
	}
	raw, present := payload[key]
	if !present {
		return false
	}
	v, ok := CoerceFloat(raw)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	set(tp, v)
	return true
}

// SetStringField copies payload[key] into the string field named field.
// It reports whether a value was set.
func SetStringField(tp *domain.Trackpoint, payload map[string]any, key, field string) bool {
	set, ok := stringFields[field]
	if !ok {
		return false
	}
	raw, present := payload[key]
	if !present {
		return false
	}
	v, ok := CoerceString(raw)
	if !ok {
		return false
	}
	set(tp, v)
	return true
}
