package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tsalab/stealthd/pkg/tsa"
)

const maxBodyBytes = 1 << 20

// API maps the /api routes onto a Facade.
type API struct {
	facade *tsa.Facade
}

// NewAPI returns the route registrar for f.
func NewAPI(f *tsa.Facade) *API {
	return &API{facade: f}
}

// RegisterRoutes implements RouteRegistrar.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/schemes", a.handleListSchemes)
		r.Post("/schemes/{id}/activate", a.handleActivate)
		r.Get("/param-files", a.handleParamFiles)
		r.Post("/setup", a.handleSetup)
		r.Post("/reset", a.handleReset)
		r.Get("/status", a.handleStatus)

		r.Post("/keys", a.handleGenerateKey)
		r.Get("/keys", a.handleKeys)
		r.Post("/addresses", a.handleGenerateAddress)
		r.Get("/addresses", a.handleAddresses)
		r.Post("/addresses/recognize", a.handleRecognize)
		r.Post("/dsks", a.handleGenerateDSK)
		r.Get("/dsks", a.handleDSKs)
		r.Post("/signatures", a.handleSign)
		r.Get("/signatures", a.handleSignatures)
		r.Post("/signatures/verify", a.handleVerify)
		r.Post("/trace", a.handleTrace)
		r.Post("/benchmark", a.handleBenchmark)
	})
}

func (a *API) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schemes": a.facade.ListSchemes(r.Context())})
}

func (a *API) handleActivate(w http.ResponseWriter, r *http.Request) {
	st, err := a.facade.ActivateScheme(r.Context(), chi.URLParam(r, "id"))
	respond(w, st, err)
}

func (a *API) handleParamFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.facade.ListParamFiles(r.Context())
	respond(w, files, err)
}

func (a *API) handleSetup(w http.ResponseWriter, r *http.Request) {
	var p tsa.SetupParams
	if !decode(w, r, "setup", &p) {
		return
	}
	res, err := a.facade.Setup(r.Context(), &p)
	respond(w, res, err)
}

type resetRequest struct {
	Scope tsa.ResetScope `json:"scope"`
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, "reset", &req) {
		return
	}
	if err := a.facade.ResetSession(r.Context(), req.Scope); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.facade.GetStatus(r.Context()))
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.facade.GetStatus(r.Context()))
}

func (a *API) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	key, err := a.facade.GenerateKey(r.Context())
	respondCreated(w, key, err)
}

func (a *API) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := a.facade.Keys(r.Context())
	respond(w, map[string]any{"keys": keys}, err)
}

func (a *API) handleGenerateAddress(w http.ResponseWriter, r *http.Request) {
	var p tsa.AddressParams
	if !decode(w, r, "generateAddress", &p) {
		return
	}
	addr, err := a.facade.GenerateAddress(r.Context(), &p)
	respondCreated(w, addr, err)
}

func (a *API) handleAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := a.facade.Addresses(r.Context())
	respond(w, map[string]any{"addresses": addrs}, err)
}

func (a *API) handleRecognize(w http.ResponseWriter, r *http.Request) {
	var p tsa.RecognizeParams
	if !decode(w, r, "recognizeAddress", &p) {
		return
	}
	res, err := a.facade.RecognizeAddress(r.Context(), &p)
	respond(w, res, err)
}

func (a *API) handleGenerateDSK(w http.ResponseWriter, r *http.Request) {
	var p tsa.DerivedKeyParams
	if !decode(w, r, "generateDerivedKey", &p) {
		return
	}
	dsk, err := a.facade.GenerateDerivedKey(r.Context(), &p)
	respondCreated(w, dsk, err)
}

func (a *API) handleDSKs(w http.ResponseWriter, r *http.Request) {
	dsks, err := a.facade.DerivedKeys(r.Context())
	respond(w, map[string]any{"dsks": dsks}, err)
}

func (a *API) handleSign(w http.ResponseWriter, r *http.Request) {
	var p tsa.SignParams
	if !decode(w, r, "signMessage", &p) {
		return
	}
	res, err := a.facade.SignMessage(r.Context(), &p)
	respondCreated(w, res, err)
}

func (a *API) handleSignatures(w http.ResponseWriter, r *http.Request) {
	sigs, err := a.facade.Signatures(r.Context())
	respond(w, map[string]any{"signatures": sigs}, err)
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	var p tsa.VerifyParams
	if !decode(w, r, "verifySignature", &p) {
		return
	}
	res, err := a.facade.VerifySignature(r.Context(), &p)
	respond(w, res, err)
}

func (a *API) handleTrace(w http.ResponseWriter, r *http.Request) {
	var p tsa.TraceParams
	if !decode(w, r, "traceIdentity", &p) {
		return
	}
	res, err := a.facade.TraceIdentity(r.Context(), &p)
	respond(w, res, err)
}

func (a *API) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var p tsa.BenchmarkParams
	if !decode(w, r, "runBenchmark", &p) {
		return
	}
	res, err := a.facade.RunBenchmark(r.Context(), &p)
	respond(w, res, err)
}

// decode reads a JSON body into v. An empty body leaves v at its zero value.
// On failure it writes an InvalidArgument response and returns false.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, tsa.Errorf(op, tsa.ErrInvalidArgument, "decoding request body: %v", err))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func respondCreated(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed call.
type ErrorDetail struct {
	Kind    tsa.Kind `json:"kind"`
	Op      string   `json:"op,omitempty"`
	Scheme  string   `json:"scheme,omitempty"`
	Message string   `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := tsa.KindOf(err)
	detail := ErrorDetail{Kind: kind, Message: err.Error()}
	var te *tsa.Error
	if errors.As(err, &te) {
		detail.Op = te.Op
		detail.Scheme = te.Scheme
	}
	if kind == tsa.KindInternal {
		detail.Message = fmt.Sprintf("internal error in %s", detail.Op)
	}
	writeJSON(w, StatusFor(kind), ErrorBody{Error: detail})
}

// StatusFor maps an error kind to the HTTP status code of its response.
func StatusFor(kind tsa.Kind) int {
	switch kind {
	case tsa.KindInvalidArgument, tsa.KindIndexOutOfRange, tsa.KindMalformedHex,
		tsa.KindUnsupportedParamFile:
		return http.StatusBadRequest
	case tsa.KindUnknownScheme:
		return http.StatusNotFound
	case tsa.KindNoActiveScheme, tsa.KindNotInitialized:
		return http.StatusConflict
	case tsa.KindCapabilityNotSupported, tsa.KindUnsupportedOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
