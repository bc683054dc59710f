package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	kerrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/davidmdm/expose/pkg/expose"
	"github.com/davidmdm/expose/pkg/resource"
)

// Cluster is what the console backend needs from the cluster.
type Cluster interface {
	expose.Lister
	expose.Creator
}

type Server struct {
	cluster Cluster
	kinds   []expose.SourceKind
	logger  logr.Logger
	router  *mux.Router
}

func New(cluster Cluster, logger logr.Logger, kinds ...expose.SourceKind) *Server {
	if len(kinds) == 0 {
		kinds = expose.DefaultSourceKinds
	}

	server := &Server{
		cluster: cluster,
		kinds:   kinds,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	server.router.HandleFunc("/healthz", server.handleHealth).Methods(http.MethodGet)
	server.router.HandleFunc("/api/namespaces/{namespace}/sources", server.handleListSources).Methods(http.MethodGet)
	server.router.HandleFunc("/api/namespaces/{namespace}/services", server.handleCreateService).Methods(http.MethodPost)

	return server
}

func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.router.ServeHTTP(w, r)
}

type APIError struct {
	Err string `json:"error"`
}

type SourceItem struct {
	Name     string            `json:"name"`
	Selector map[string]string `json:"selector,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type SourceListResponse struct {
	Kind   string       `json:"kind"`
	Loaded bool         `json:"loaded"`
	Items  []SourceItem `json:"items"`
	Error  string       `json:"error,omitempty"`
}

type PortRequest struct {
	Name       string `json:"name,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	Port       *int32 `json:"port,omitempty"`
	TargetPort *int32 `json:"targetPort,omitempty"`
}

type CreateServiceRequest struct {
	Name            string        `json:"name"`
	SourceKind      string        `json:"sourceKind"`
	Source          string        `json:"source"`
	Type            string        `json:"type,omitempty"`
	ExternalName    string        `json:"externalName,omitempty"`
	Headless        bool          `json:"headless,omitempty"`
	SessionAffinity string        `json:"sessionAffinity,omitempty"`
	Ports           []PortRequest `json:"ports,omitempty"`
}

type CreateServiceResponse struct {
	Path    string            `json:"path"`
	Service *resource.Service `json:"service"`
}

func (server *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (server *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	logger := server.logger.WithValues("namespace", namespace)

	form := expose.NewForm(namespace, server.kinds...)
	if err := form.Load(r.Context(), server.cluster); err != nil {
		logger.Info("some sources could not be listed", "error", err.Error())
	}

	response := make([]SourceListResponse, len(form.Sources))
	for i, source := range form.Sources {
		items := make([]SourceItem, len(source.Items))
		for j, item := range source.Items {
			items[j] = SourceItem{Name: item.GetName()}
			if selector, err := expose.SelectorOf(item); err != nil {
				items[j].Error = err.Error()
			} else {
				items[j].Selector = selector
			}
		}
		response[i] = SourceListResponse{
			Kind:   source.Kind.Kind,
			Loaded: source.Loaded,
			Items:  items,
			Error:  source.Err,
		}
	}

	sendResponse(logger, w, http.StatusOK, response)
}

func (server *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]

	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendResponse(server.logger, w, http.StatusBadRequest, APIError{Err: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	logger := server.logger.WithValues("namespace", namespace, "service", req.Name)

	form, err := server.newForm(namespace, req)
	if err != nil {
		sendResponse(logger, w, http.StatusUnprocessableEntity, APIError{Err: err.Error()})
		return
	}

	if err := form.Load(r.Context(), server.cluster); err != nil {
		logger.Info("some sources could not be listed", "error", err.Error())
	}

	kind, ok := expose.LookupSourceKind(server.kinds, req.SourceKind)
	if !ok {
		sendResponse(logger, w, http.StatusUnprocessableEntity, APIError{Err: fmt.Sprintf("unknown source kind %q", req.SourceKind)})
		return
	}

	if err := form.SelectByName(kind.Kind, req.Source); err != nil {
		sendResponse(logger, w, http.StatusUnprocessableEntity, APIError{Err: err.Error()})
		return
	}

	service, err := form.Service()
	if err != nil {
		sendResponse(logger, w, http.StatusUnprocessableEntity, APIError{Err: err.Error()})
		return
	}

	var path string
	navigate := expose.NavigatorFunc(func(value string) { path = value })

	if err := form.Submit(r.Context(), server.cluster, navigate); err != nil {
		logger.Error(err, "failed to create service")
		sendResponse(logger, w, statusCode(err), APIError{Err: form.Error})
		return
	}

	logger.Info("created service", "path", path)

	sendResponse(logger, w, http.StatusCreated, CreateServiceResponse{Path: path, Service: service})
}

func (server *Server) newForm(namespace string, req CreateServiceRequest) (*expose.Form, error) {
	form := expose.NewForm(namespace, server.kinds...)
	form.Name = req.Name
	form.ExternalName = req.ExternalName
	form.Headless = req.Headless

	if req.Type != "" {
		serviceType, err := expose.ParseServiceType(req.Type)
		if err != nil {
			return nil, err
		}
		form.Type = serviceType
	}

	if req.SessionAffinity != "" {
		affinity, err := expose.ParseAffinity(req.SessionAffinity)
		if err != nil {
			return nil, err
		}
		form.SessionAffinity = affinity
	}

	if err := form.Ports.ApplyAll(portInputs(req.Ports)); err != nil {
		return nil, err
	}

	return form, nil
}

func portInputs(requested []PortRequest) []expose.PortInput {
	inputs := make([]expose.PortInput, len(requested))
	for i, port := range requested {
		inputs[i] = expose.PortInput{
			Name:       port.Name,
			Protocol:   port.Protocol,
			Port:       formatPort(port.Port),
			TargetPort: formatPort(port.TargetPort),
		}
	}
	return inputs
}

func formatPort(port *int32) string {
	if port == nil {
		return ""
	}
	return strconv.Itoa(int(*port))
}

func statusCode(err error) int {
	var status kerrors.APIStatus
	if errors.As(err, &status) {
		if code := int(status.Status().Code); code != 0 {
			return code
		}
	}
	return http.StatusInternalServerError
}

func sendResponse(logger logr.Logger, w http.ResponseWriter, code int, resp any) {
	enc, err := json.Marshal(resp)
	if err != nil {
		logger.Error(err, "failed JSON-encoding HTTP response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if _, err := w.Write(enc); err != nil {
		logger.Error(err, "failed sending HTTP response body")
	}
}
