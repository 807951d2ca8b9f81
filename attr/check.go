package attr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func String(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%v (%T) is no string", value, value)
	}
	return nil
}

func Int(value any) error {
	if _, ok := value.(int); !ok {
		return fmt.Errorf("%v (%T) is no int", value, value)
	}
	return nil
}

func Bool(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%v (%T) is no bool", value, value)
	}
	return nil
}

func Time(value any) error {
	if _, ok := value.(time.Time); !ok {
		return fmt.Errorf("%v (%T) is no timestamp", value, value)
	}
	return nil
}

func StringList(value any) error {
	if _, ok := value.([]string); !ok {
		return fmt.Errorf("%v (%T) is no list of strings", value, value)
	}
	return nil
}

func StringMap(value any) error {
	if _, ok := value.(map[string]string); !ok {
		return fmt.Errorf("%v (%T) is no map of strings", value, value)
	}
	return nil
}

func IPv4(value any) error {
	if err := String(value); err != nil {
		return err
	}
	address := value.(string)
	chunks := strings.Split(address, ".")
	if len(chunks) != 4 {
		return fmt.Errorf("%q is no IPv4 address", address)
	}
	for _, chunk := range chunks {
		n, err := strconv.Atoi(chunk)
		if err != nil {
			return fmt.Errorf("%q is no IPv4 address (%q is no int)", address, chunk)
		}
		if n < 0 || n > 255 {
			return fmt.Errorf("%q is no IPv4 address (%d is out of range)", address, n)
		}
	}
	return nil
}

// HexColor accepts "#rrggbb".
func HexColor(value any) error {
	if err := String(value); err != nil {
		return err
	}
	color := value.(string)
	if len(color) != 7 || color[0] != '#' {
		return fmt.Errorf("%q is no hex color", color)
	}
	for _, r := range color[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("%q is no hex color (%q is no hex digit)", color, r)
		}
	}
	return nil
}

// Of accepts values whose dynamic type is exactly T.
func Of[T any]() Check {
	return func(value any) error {
		if _, ok := value.(T); !ok {
			var zero T
			return fmt.Errorf("%v (%T) is no %T", value, value, zero)
		}
		return nil
	}
}

// Optional accepts nil in addition to whatever check accepts.
func Optional(check Check) Check {
	return func(value any) error {
		if value == nil {
			return nil
		}
		return check(value)
	}
}
