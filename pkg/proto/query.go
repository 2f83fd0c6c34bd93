// Package proto holds what the server query protocols have in common. A
// query protocol lets server browsers and hosting providers ask a running
// host how full it is.
package proto

import (
	"bytes"
	"reflect"
)

type (
	// Responder answers query packets for one protocol.
	Responder interface {
		Respond(clientAddress string, buf []byte) ([]byte, error)
	}

	// WireEncoder writes values in a protocol's byte order and string format.
	WireEncoder interface {
		WriteString(resp *bytes.Buffer, s string) error
		Write(resp *bytes.Buffer, v interface{}) error
	}

	// State is what a host reports about itself.
	State struct {
		CurrentPlayers int32
		MaxPlayers     int32
		ServerName     string
		GameType       string
		Map            string
		Port           uint16
	}

	// StateFunc returns the host's state at the moment a query arrives.
	StateFunc func() State
)

// WireWrite writes the fields of the struct data to resp in declaration
// order using w. Nested structs are flattened and nil pointers skipped.
func WireWrite(resp *bytes.Buffer, w WireEncoder, data interface{}) error {
	v := reflect.Indirect(reflect.ValueOf(data))

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}

			field = field.Elem()
		}

		var err error

		switch field.Kind() {
		case reflect.Struct:
			err = WireWrite(resp, w, field.Interface())
		case reflect.String:
			err = w.WriteString(resp, field.String())
		default:
			err = w.Write(resp, field.Interface())
		}

		if err != nil {
			return err
		}
	}

	return nil
}
