// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = validator.New()

// AnalyzeRequest asks for a scraping decision on one observed request.
// Identifier is optional: when empty it is resolved from the calling
// request's identity or network origin.
type AnalyzeRequest struct {
	Identifier     string `json:"identifier" validate:"omitempty,max=256"`
	ResourceType   string `json:"resource_type" validate:"required,oneof=image set download"`
	UserAgent      string `json:"user_agent" validate:"max=1024"`
	AcceptLanguage string `json:"accept_language" validate:"max=256"`
	AcceptEncoding string `json:"accept_encoding" validate:"max=256"`
	OriginAddress  string `json:"origin_address" validate:"omitempty,max=256"`
}

// BanRequest issues a manual ban.
type BanRequest struct {
	Identifier      string `json:"identifier" validate:"required,max=256"`
	Reason          string `json:"reason" validate:"required,max=512"`
	DurationSeconds int64  `json:"duration_seconds" validate:"omitempty,min=1,max=31536000"`
}

// ResetRequest clears rate-limit state for an identifier, for one class or
// all of them.
type ResetRequest struct {
	Identifier string `json:"identifier" validate:"required,max=256"`
	Class      string `json:"class" validate:"omitempty,oneof=image_view set_view download api auth bulk_view"`
}

// SignalConfigRequest tunes one analyzer signal. Both fields are optional
// so a signal can be toggled without restating its configuration.
type SignalConfigRequest struct {
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config" validate:"omitempty"`
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself when either step fails.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		rw.ValidationError("request validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) []string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fmt.Sprintf("field %s failed on %s", fe.Field(), fe.Tag()))
	}
	return out
}
