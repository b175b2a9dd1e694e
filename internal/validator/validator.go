// Package validator guards the two data contracts of fsm-lower with CUE
// schemas: the design handed to the lowering passes and the netlist handed
// to code emission and design rules.
//
// A contract violation is a hard error. It means the producer and the
// consumer disagree about the data, and every result computed past that
// point would be built on a silent misreading. Fix the producer or the
// schema; never route around the check.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed design_schema.cue netlist_schema.cue
var schemaFS embed.FS

// schema is one compiled contract and the definition data is checked against.
type schema struct {
	ctx  *cue.Context
	val  cue.Value
	def  string
	what string
}

func compileSchema(file, def, what string) (*schema, error) {
	ctx := cuecontext.New()

	src, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading %s schema: %w", what, err)
	}

	val := ctx.CompileBytes(src)
	if val.Err() != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", what, val.Err())
	}

	return &schema{ctx: ctx, val: val, def: def, what: what}, nil
}

func (s *schema) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling %s as CUE: %w", s.what, dataValue.Err())
	}

	def := s.val.LookupPath(cue.ParsePath(s.def))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", s.def, def.Err())
	}

	return def.Unify(dataValue), nil
}

func (s *schema) validateJSON(jsonBytes []byte) error {
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", s.what, err)
	}
	return nil
}

// errorList flattens every validation error, one line each.
func (s *schema) errorList(jsonBytes []byte) []string {
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate()
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// Validator checks design files against the #Design contract before they
// are decoded.
type Validator struct {
	s *schema
}

// New creates a Validator with the embedded design schema
func New() (*Validator, error) {
	s, err := compileSchema("design_schema.cue", "#Design", "design")
	if err != nil {
		return nil, err
	}
	return &Validator{s: s}, nil
}

// ValidateJSON validates a design file's bytes.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	return v.s.validateJSON(jsonBytes)
}

// ValidationErrors returns every contract violation of a design file, or
// nil when it conforms.
func (v *Validator) ValidationErrors(jsonBytes []byte) []string {
	return v.s.errorList(jsonBytes)
}

// NetlistValidator checks the lowered netlist against the #Netlist
// contract.
type NetlistValidator struct {
	s *schema
}

// NewNetlistValidator creates a validator for netlist tables.
func NewNetlistValidator() (*NetlistValidator, error) {
	s, err := compileSchema("netlist_schema.cue", "#Netlist", "netlist")
	if err != nil {
		return nil, err
	}
	return &NetlistValidator{s: s}, nil
}

// Validate marshals the tables and checks them.
func (v *NetlistValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling netlist to JSON: %w", err)
	}
	return v.s.validateJSON(jsonBytes)
}
