package httpapi

import "fmt"

func errMissingField(field string) error {
	return fmt.Errorf("missing required field %q", field)
}

func errBadValue(field string) error {
	return fmt.Errorf("invalid value for field %q", field)
}

func errNotFound(kind string) error {
	return fmt.Errorf("%s not found", kind)
}

func errNotConfigured(kind string) error {
	return fmt.Errorf("%s is not configured", kind)
}
