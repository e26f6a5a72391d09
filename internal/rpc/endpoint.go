package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Endpoint is a typed remote procedure: P is the params struct, R the decoded
// response body.
//
// Fields of P tagged `path:"id"` fill the {id} segment of Path, fields tagged
// `query:"limit"` become query parameters, and for POST, PUT and PATCH the
// whole struct is sent as the JSON body (tag path/query fields `json:"-"` to
// keep them out of it). `validate` tags decide whether P is complete.
type Endpoint[P, R any] struct {
	Name   string
	Method string
	Path   string
}

// Get declares a GET endpoint.
func Get[P, R any](name, path string) Endpoint[P, R] {
	return Endpoint[P, R]{Name: name, Method: http.MethodGet, Path: path}
}

// Post declares a POST endpoint.
func Post[P, R any](name, path string) Endpoint[P, R] {
	return Endpoint[P, R]{Name: name, Method: http.MethodPost, Path: path}
}

// Put declares a PUT endpoint.
func Put[P, R any](name, path string) Endpoint[P, R] {
	return Endpoint[P, R]{Name: name, Method: http.MethodPut, Path: path}
}

// Delete declares a DELETE endpoint.
func Delete[P, R any](name, path string) Endpoint[P, R] {
	return Endpoint[P, R]{Name: name, Method: http.MethodDelete, Path: path}
}

// Request is a fully resolved call.
type Request struct {
	Endpoint string
	Method   string
	Path     string
	Query    url.Values
	Body     []byte
}

// Ready reports whether every required parameter of p is present.
func (e Endpoint[P, R]) Ready(p P) error {
	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("%s: params are nil", e.Name)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v.Interface())
}

// Args returns the path and query values of p in field order. Together with
// the endpoint they determine the response, so they make up the cache key.
func (e Endpoint[P, R]) Args(p P) []any {
	var args []any
	walkParams(p, func(f reflect.StructField, v reflect.Value) {
		if f.Tag.Get("path") == "" && f.Tag.Get("query") == "" {
			return
		}
		args = append(args, v.Interface())
	})
	return args
}

// Build resolves p into a Request.
func (e Endpoint[P, R]) Build(p P) (Request, error) {
	req := Request{
		Endpoint: e.Name,
		Method:   e.Method,
		Path:     e.Path,
		Query:    url.Values{},
	}

	var missing []string
	walkParams(p, func(f reflect.StructField, v reflect.Value) {
		if name := f.Tag.Get("path"); name != "" {
			s := fmt.Sprint(v.Interface())
			if s == "" {
				missing = append(missing, name)
			}
			req.Path = strings.ReplaceAll(req.Path, "{"+name+"}", url.PathEscape(s))
		}
		if name := f.Tag.Get("query"); name != "" && !v.IsZero() {
			req.Query.Set(name, fmt.Sprint(v.Interface()))
		}
	})
	if len(missing) > 0 {
		return Request{}, fmt.Errorf("%s: missing path parameters %v", e.Name, missing)
	}
	if strings.Contains(req.Path, "{") {
		return Request{}, fmt.Errorf("%s: unresolved path %q", e.Name, req.Path)
	}

	switch e.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body, err := json.Marshal(p)
		if err != nil {
			return Request{}, fmt.Errorf("%s: encode body: %w", e.Name, err)
		}
		req.Body = body
	}
	return req, nil
}

// walkParams visits the exported fields of a params struct, dereferencing
// pointers. Nil pointer fields are skipped.
func walkParams(p any, visit func(reflect.StructField, reflect.Value)) {
	v := reflect.ValueOf(p)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		visit(f, fv)
	}
}
