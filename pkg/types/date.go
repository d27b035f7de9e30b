package types

import (
	"database/sql/driver"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without time or zone, stored in DATE columns and
// serialized as YYYY-MM-DD.
type Date struct {
	civil.Date
}

// NewDate truncates t to its calendar day in t's location.
func NewDate(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// Today returns the current UTC calendar day.
func Today() Date {
	return NewDate(time.Now().UTC())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	d, err := civil.ParseDate(value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return Date{d}, nil
}

func (d Date) Before(other Date) bool { return d.Date.Before(other.Date) }
func (d Date) After(other Date) bool  { return d.Date.After(other.Date) }

// Max returns the later of d and other.
func (d Date) Max(other Date) Date {
	if other.After(d) {
		return other
	}
	return d
}

func (d Date) String() string {
	return d.Date.String()
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("invalid date %v", d.Date)
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns across drivers.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = Date{civil.Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case nil:
		return fmt.Errorf("cannot scan NULL into Date")
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(v string) error {
	if len(v) >= len(dateLayout) {
		v = v[:len(dateLayout)]
	}
	parsed, err := ParseDate(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
