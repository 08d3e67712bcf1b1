package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps an error code to its HTTP status.
func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeInput:
		return http.StatusBadRequest
	case apperror.CodeRecognition:
		return http.StatusUnprocessableEntity
	case apperror.CodeSpoof:
		return http.StatusForbidden
	case apperror.CodeDuplicate:
		return http.StatusOK
	case apperror.CodeConflict:
		return http.StatusConflict
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError sends err with the status of its code. Internal errors are
// logged and reported without detail.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperror.CodeOf(err)
	status := statusFor(code)
	body := map[string]string{"error": err.Error(), "code": string(code)}
	if reason := apperror.ReasonOf(err); reason != "" {
		body["reason"] = reason
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, sanitizeForLog(r.URL.Path), err)
		body["error"] = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, status, body)
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Input("%s: %v", errInvalidRequestBody, err)
	}
	return nil
}

// imageRequest is the JSON form of an image upload.
type imageRequest struct {
	Image string `json:"image"`
}

// readImage extracts the image of a scan or capture request. It accepts a
// multipart form with an "image" file, a JSON body with a base64 "image"
// field or a raw image body.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			return nil, apperror.Input("parse multipart form: %v", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, apperror.Input("missing image file: %v", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, apperror.Input("read image file: %v", err)
		}
		return data, nil
	case "application/json":
		var req imageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		return recognition.DecodeBase64Image(req.Image)
	default:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxUploadSize))
		if err != nil {
			return nil, apperror.Input("read image body: %v", err)
		}
		return data, nil
	}
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Input("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter, zero when absent.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Input("invalid %s %q", name, raw)
	}
	return n, nil
}

// parseDay parses a YYYY-MM-DD calendar day in loc.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, apperror.Input("invalid date %q, want YYYY-MM-DD", raw)
	}
	return day, nil
}

// queryPeriod reads the half-open day range [from, to) from the "from" and
// "to" query parameters. "to" is inclusive on the wire. Missing values
// default to the last constants.DefaultHistoryDays days ending today.
func queryPeriod(r *http.Request, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	today := now.In(loc)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	from := today.AddDate(0, 0, -constants.DefaultHistoryDays+1)
	to := today.AddDate(0, 0, 1)

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		d, err := parseDay(raw, loc)
		if err != nil {
			return from, to, err
		}
		from = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := parseDay(raw, loc)
		if err != nil {
			return from, to, err
		}
		to = d.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// actorID returns the administrator the request acts for.
func actorID(r *http.Request) (int64, error) {
	id, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		return 0, errors.New("request has no actor")
	}
	return id, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
