package dto

import (
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrInvalidStatusEvent = errors.New("channel_id, provider (zapi|baileys), ids and status are required")

// maxExactInteger is the largest magnitude a JSON number holds without
// losing integer precision.
const maxExactInteger = 1 << 53

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// StatusEventRequest is a status event pushed by an internal caller.
type StatusEventRequest struct {
	ChannelID int64    `validate:"gt=0"`
	Provider  string   `validate:"required,oneof=zapi baileys"`
	IDs       []string `validate:"required,min=1,dive,required"`
	Status    string   `validate:"required"`
	Error     string
	Timestamp *int64 `validate:"omitempty,gte=0"`

	// malformed marks numbers that are not exact integers.
	malformed bool
}

// FromStruct converts and normalizes a google.protobuf.Struct request.
func FromStruct(req *structpb.Struct) StatusEventRequest {
	if req == nil {
		return StatusEventRequest{}
	}
	fields := req.GetFields()

	channelID, ok := wholeNumber(fields["channel_id"])
	dto := StatusEventRequest{
		ChannelID: channelID,
		malformed: !ok,
		Provider:  fields["provider"].GetStringValue(),
		Status:    fields["status"].GetStringValue(),
		Error:     fields["error"].GetStringValue(),
	}
	for _, v := range fields["ids"].GetListValue().GetValues() {
		dto.IDs = append(dto.IDs, v.GetStringValue())
	}
	if ts, ok := fields["timestamp"]; ok {
		if _, isNumber := ts.GetKind().(*structpb.Value_NumberValue); isNumber {
			value, ok := wholeNumber(ts)
			dto.Timestamp = &value
			dto.malformed = dto.malformed || !ok
		}
	}
	dto.normalize()
	return dto
}

// Validate checks required fields and format constraints.
func (r *StatusEventRequest) Validate() error {
	if r.malformed {
		return ErrInvalidStatusEvent
	}
	if err := getValidator().Struct(r); err != nil {
		return ErrInvalidStatusEvent
	}
	return nil
}

// wholeNumber reads a number value as int64. Missing and non-number values
// read as zero; fractions and values beyond exact float range are rejected.
func wholeNumber(v *structpb.Value) (int64, bool) {
	if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, true
	}
	f := v.GetNumberValue()
	if math.Trunc(f) != f || math.Abs(f) > maxExactInteger {
		return 0, false
	}
	return int64(f), true
}

// normalize trims whitespace for all fields.
func (r *StatusEventRequest) normalize() {
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	r.Status = strings.TrimSpace(r.Status)
	r.Error = strings.TrimSpace(r.Error)
	for i := range r.IDs {
		r.IDs[i] = strings.TrimSpace(r.IDs[i])
	}
}
