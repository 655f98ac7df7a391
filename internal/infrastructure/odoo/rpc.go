package odoo

import (
	"encoding/json"
	"fmt"
	"strings"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
)

// rpcRequest is a JSON-RPC 2.0 call envelope.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Debug   string `json:"debug"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	msg := e.Data.Message
	if msg == "" {
		msg = e.Message
	}
	if e.Data.Name != "" {
		return fmt.Sprintf("%s: %s", e.Data.Name, msg)
	}
	return msg
}

// toAppError classifies a server fault by its exception class.
func (e *rpcError) toAppError(kind directory.Kind, method string) *apperror.AppError {
	name := e.Data.Name
	switch {
	case strings.HasSuffix(name, "AccessDenied"), strings.HasSuffix(name, "SessionExpiredException"):
		return apperror.NewConnectivity("directory", e).WithDetail("method", method)
	case strings.HasSuffix(name, "MissingError"):
		return apperror.NewNotFound(string(kind), method).WithCause(e)
	case strings.HasSuffix(name, "ValidationError"),
		strings.HasSuffix(name, "UserError"),
		strings.HasSuffix(name, "AccessError"),
		strings.HasSuffix(name, "IntegrityError"),
		strings.Contains(name, "psycopg2"):
		return apperror.NewWriteRejected(string(kind), e).WithDetail("method", method)
	}
	return apperror.NewWriteRejected(string(kind), e).
		WithDetail("method", method).
		WithDetail("exception", name)
}

var operators = map[filter.ComparisonType]string{
	filter.Equal:          "=",
	filter.NotEqual:       "!=",
	filter.Less:           "<",
	filter.Greater:        ">",
	filter.LessOrEqual:    "<=",
	filter.GreaterOrEqual: ">=",
	filter.InList:         "in",
	filter.NotInList:      "not in",
	filter.Contains:       "ilike",
	filter.NotContains:    "not ilike",
	filter.InHierarchy:    "child_of",
}

// encodeDomain renders a Domain in the remote list form:
// ["|", ["a", "=", 1], ["b", "!=", false]].
func encodeDomain(d filter.Domain) ([]any, error) {
	out := make([]any, 0, len(d))
	for _, t := range d {
		switch v := t.(type) {
		case filter.LogicOp:
			out = append(out, string(v))
		case filter.Item:
			switch v.Operator {
			case filter.IsNull:
				out = append(out, []any{v.Field, "=", false})
				continue
			case filter.IsNotNull:
				out = append(out, []any{v.Field, "!=", false})
				continue
			}
			op, ok := operators[v.Operator]
			if !ok {
				return nil, apperror.NewValidation(fmt.Sprintf("operator %q has no remote form", v.Operator))
			}
			value := v.Value
			if value == nil {
				value = false
			}
			out = append(out, []any{v.Field, op, value})
		default:
			return nil, apperror.NewValidation(fmt.Sprintf("unknown domain term %T", t))
		}
	}
	return out, nil
}
