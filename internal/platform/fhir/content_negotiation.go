package fhir

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// NegotiateFormat picks the response format for a FHIR request. The _format
// query parameter wins over the Accept header; no preference means JSON.
func NegotiateFormat(c echo.Context) (Format, error) {
	if raw := c.QueryParam("_format"); raw != "" {
		return ParseFormat(raw)
	}
	if f, ok := negotiateAccept(c.Request().Header.Get(echo.HeaderAccept)); ok {
		return f, nil
	}
	return FormatJSON, nil
}

// RequestFormat reads the body format of an incoming FHIR payload from its
// Content-Type, defaulting to JSON.
func RequestFormat(c echo.Context) (Format, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if ct == "" {
		return FormatJSON, nil
	}
	return ParseFormat(ct)
}

// negotiateAccept returns the first listed media type this server can produce.
func negotiateAccept(accept string) (Format, bool) {
	for _, part := range strings.Split(accept, ",") {
		mediaType := normalizeFormat(part)
		switch {
		case isJSONFormat(mediaType), mediaType == "*/*":
			return FormatJSON, true
		case isXMLFormat(mediaType):
			return FormatXML, true
		}
	}
	return FormatJSON, false
}
