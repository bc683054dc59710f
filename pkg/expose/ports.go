package expose

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
)

// MaxPortCount caps the number of port rows. Values <= 0 disable the cap.
const MaxPortCount = -1

var (
	ErrLastPort     = errors.New("at least one port is required")
	ErrPortCapacity = errors.New("maximum number of ports reached")
)

type PortField string

const (
	PortFieldName       PortField = "name"
	PortFieldProtocol   PortField = "protocol"
	PortFieldPort       PortField = "port"
	PortFieldTargetPort PortField = "targetPort"
)

// PortRow is a single editable port. Key identifies the row across edits and removals.
type PortRow struct {
	Key                      string
	Name                     string
	Protocol                 corev1.Protocol
	Port                     *int32
	TargetPort               *int32
	TargetPortAssignedByUser bool
}

func newPortRow() PortRow {
	return PortRow{
		Key:      "service-port-" + uuid.NewString(),
		Protocol: corev1.ProtocolTCP,
	}
}

// Ports is the list editor behind the form's port section. Edits never mutate a
// slice previously returned by Rows.
type Ports struct {
	rows []PortRow
}

func NewPorts() *Ports {
	return &Ports{rows: []PortRow{newPortRow()}}
}

func (ports *Ports) Rows() []PortRow {
	return slices.Clone(ports.rows)
}

func (ports *Ports) Len() int {
	return len(ports.rows)
}

func (ports *Ports) CanAdd() bool {
	return MaxPortCount <= 0 || MaxPortCount > len(ports.rows)
}

func (ports *Ports) CanRemove() bool {
	return len(ports.rows) > 1
}

// Add appends a TCP row and returns its key.
func (ports *Ports) Add() (string, error) {
	if !ports.CanAdd() {
		return "", ErrPortCapacity
	}
	row := newPortRow()
	ports.rows = append(slices.Clip(ports.rows), row)
	return row.Key, nil
}

func (ports *Ports) Remove(index int) error {
	if err := ports.checkIndex(index); err != nil {
		return err
	}
	if !ports.CanRemove() {
		return ErrLastPort
	}
	ports.rows = slices.Delete(slices.Clone(ports.rows), index, index+1)
	return nil
}

// Change sets a single field of the row at index from its textual form value.
// Setting targetPort marks it as chosen by the user; until then, setting port
// copies the value into targetPort as well.
func (ports *Ports) Change(index int, field PortField, value string) error {
	if err := ports.checkIndex(index); err != nil {
		return err
	}

	row := ports.rows[index]

	switch field {
	case PortFieldName:
		row.Name = value
	case PortFieldProtocol:
		protocol, err := ParseProtocol(value)
		if err != nil {
			return err
		}
		row.Protocol = protocol
	case PortFieldPort:
		port, err := ParsePortNumber(value)
		if err != nil {
			return fmt.Errorf("invalid port: %w", err)
		}
		row.Port = port
		if !row.TargetPortAssignedByUser {
			row.TargetPort = port
		}
	case PortFieldTargetPort:
		port, err := ParsePortNumber(value)
		if err != nil {
			return fmt.Errorf("invalid target port: %w", err)
		}
		row.TargetPort = port
		row.TargetPortAssignedByUser = true
	default:
		return fmt.Errorf("unknown port field: %q", field)
	}

	rows := slices.Clone(ports.rows)
	rows[index] = row
	ports.rows = rows

	return nil
}

func (ports *Ports) checkIndex(index int) error {
	if index < 0 || index >= len(ports.rows) {
		return fmt.Errorf("port index %d out of range [0, %d)", index, len(ports.rows))
	}
	return nil
}

// ParsePortNumber parses a port between 0 and 65535. An empty value yields nil.
func ParsePortNumber(value string) (*int32, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	number, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return nil, err
	}
	if number < 0 || number > 65535 {
		return nil, fmt.Errorf("%d is not between 0 and 65535", number)
	}
	port := int32(number)
	return &port, nil
}

func ParseProtocol(value string) (corev1.Protocol, error) {
	switch protocol := corev1.Protocol(strings.ToUpper(value)); protocol {
	case corev1.ProtocolTCP, corev1.ProtocolUDP, corev1.ProtocolSCTP:
		return protocol, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q: must be one of TCP, UDP, SCTP", value)
	}
}

// PortInput is a port row as typed by a user. Empty fields leave the row unchanged.
type PortInput struct {
	Name       string
	Protocol   string
	Port       string
	TargetPort string
}

// Apply edits the row at index field by field, so an input without a target port
// still gets one mirrored from its port.
func (ports *Ports) Apply(index int, input PortInput) error {
	changes := []struct {
		field PortField
		value string
	}{
		{PortFieldName, input.Name},
		{PortFieldProtocol, input.Protocol},
		{PortFieldPort, input.Port},
		{PortFieldTargetPort, input.TargetPort},
	}

	for _, change := range changes {
		if change.value == "" {
			continue
		}
		if err := ports.Change(index, change.field, change.value); err != nil {
			return err
		}
	}

	return nil
}

// ApplyAll fills the rows from inputs, adding rows beyond the first as needed.
func (ports *Ports) ApplyAll(inputs []PortInput) error {
	for i, input := range inputs {
		for ports.Len() <= i {
			if _, err := ports.Add(); err != nil {
				return err
			}
		}
		if err := ports.Apply(i, input); err != nil {
			return fmt.Errorf("ports[%d]: %w", i, err)
		}
	}
	return nil
}
