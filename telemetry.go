package flightlink

import (
	"fmt"
	"math"
	"strings"
)

// Record is the latest known vehicle state. A nil field has not been
// sampled yet, or its source is not running in this build.
type Record struct {
	Longitude        *float32 // GPS longitude in decimal degrees
	Latitude         *float32 // GPS latitude in decimal degrees
	GPSAltitude      *float32 // GPS fix altitude in meters
	BaroAltitude     *float32 // barometric altitude in meters, uncalibrated
	RelativeAltitude *float32 // barometric altitude relative to the first sample, meters
	TimeOfDay        *uint32  // packed HHMMSS from the navigation fix
}

// Publisher receives complete records, e.g. ones decoded off the radio.
type Publisher interface {
	Publish(r Record)
}

func Float32(v float32) *float32 {
	return &v
}

func Uint32(v uint32) *uint32 {
	return &v
}

// PackTimeOfDay packs a wall clock time as HHMMSS.
func PackTimeOfDay(hour, minute, second int) uint32 {
	return uint32(hour*10000 + minute*100 + second)
}

// Clone returns a copy that shares no pointers with r.
func (r Record) Clone() Record {
	return Record{
		Longitude:        cloneFloat32(r.Longitude),
		Latitude:         cloneFloat32(r.Latitude),
		GPSAltitude:      cloneFloat32(r.GPSAltitude),
		BaroAltitude:     cloneFloat32(r.BaroAltitude),
		RelativeAltitude: cloneFloat32(r.RelativeAltitude),
		TimeOfDay:        cloneUint32(r.TimeOfDay),
	}
}

// Merge overwrites the fields of r that are known in other.
func (r *Record) Merge(other Record) {
	if other.Longitude != nil {
		r.Longitude = cloneFloat32(other.Longitude)
	}
	if other.Latitude != nil {
		r.Latitude = cloneFloat32(other.Latitude)
	}
	if other.GPSAltitude != nil {
		r.GPSAltitude = cloneFloat32(other.GPSAltitude)
	}
	if other.BaroAltitude != nil {
		r.BaroAltitude = cloneFloat32(other.BaroAltitude)
	}
	if other.RelativeAltitude != nil {
		r.RelativeAltitude = cloneFloat32(other.RelativeAltitude)
	}
	if other.TimeOfDay != nil {
		r.TimeOfDay = cloneUint32(other.TimeOfDay)
	}
}

// Equal compares field values rather than pointers. Floats compare by bit
// pattern, so NaN equals itself and 0 differs from -0.
func (r Record) Equal(other Record) bool {
	return equalFloat32(r.Longitude, other.Longitude) &&
		equalFloat32(r.Latitude, other.Latitude) &&
		equalFloat32(r.GPSAltitude, other.GPSAltitude) &&
		equalFloat32(r.BaroAltitude, other.BaroAltitude) &&
		equalFloat32(r.RelativeAltitude, other.RelativeAltitude) &&
		equalUint32(r.TimeOfDay, other.TimeOfDay)
}

func (r Record) String() string {
	var sb strings.Builder
	sb.WriteString("lat=")
	sb.WriteString(formatFloat32(r.Latitude, "%.6f"))
	sb.WriteString(" lon=")
	sb.WriteString(formatFloat32(r.Longitude, "%.6f"))
	sb.WriteString(" gps_alt=")
	sb.WriteString(formatFloat32(r.GPSAltitude, "%.1fm"))
	sb.WriteString(" baro_alt=")
	sb.WriteString(formatFloat32(r.BaroAltitude, "%.1fm"))
	sb.WriteString(" rel_alt=")
	sb.WriteString(formatFloat32(r.RelativeAltitude, "%+.1fm"))
	sb.WriteString(" time=")
	if r.TimeOfDay == nil {
		sb.WriteString("unknown")
	} else {
		t := *r.TimeOfDay
		fmt.Fprintf(&sb, "%02d:%02d:%02d", t/10000, t/100%100, t%100)
	}
	return sb.String()
}

func formatFloat32(v *float32, format string) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf(format, *v)
}

func cloneFloat32(v *float32) *float32 {
	if v == nil {
		return nil
	}
	return Float32(*v)
}

func cloneUint32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	return Uint32(*v)
}

func equalFloat32(a, b *float32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return math.Float32bits(*a) == math.Float32bits(*b)
}

func equalUint32(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
