package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/lppsync/handlers"
	"p9e.in/lppsync/middleware"
	"p9e.in/lppsync/pkg/artifacts"
)

// RegisterRoutes sets up all application routes. store receives archived
// uploads and exports; templatePath is the default LPP template.
func RegisterRoutes(store artifacts.Store, templatePath string) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)

	r.HandleFunc("/health", handlers.NewHealthHandler().Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/states", handlers.GetStates).Methods("GET")

	registerProjectRoutes(api)
	registerDrawingRoutes(api)
	registerFileRoutes(api, store, templatePath)

	return middleware.CORS(r)
}

func registerProjectRoutes(api *mux.Router) {
	h := handlers.NewProjectHandler()

	api.HandleFunc("/projects", h.ListProjects).Methods("GET")
	api.HandleFunc("/projects", h.CreateProject).Methods("POST")
	api.HandleFunc("/projects/{proj_num}", h.GetProject).Methods("GET")
	api.HandleFunc("/projects/{proj_num}", h.UpdateProject).Methods("PUT")
	api.HandleFunc("/projects/{proj_num}", h.DeleteProject).Methods("DELETE")
	api.HandleFunc("/projects/{proj_num}/stats", h.GetProjectStats).Methods("GET")
}

func registerDrawingRoutes(api *mux.Router) {
	h := handlers.NewDrawingHandler()

	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/options", h.GetOptions).Methods("GET")

	api.HandleFunc("/drawings", h.ListDrawings).Methods("GET")
	api.HandleFunc("/drawings", h.DeleteDrawings).Methods("DELETE")
	api.HandleFunc("/drawings/{id:[0-9]+}", h.GetDrawing).Methods("GET")
	api.HandleFunc("/drawings/{id:[0-9]+}", h.UpdateDrawing).Methods("PUT")
	api.HandleFunc("/drawings/{id:[0-9]+}", h.DeleteDrawing).Methods("DELETE")
	api.HandleFunc("/drawings/{id:[0-9]+}/state", h.UpdateState).Methods("PATCH")
	api.HandleFunc("/drawings/{id:[0-9]+}/revisions", h.GetRevisions).Methods("GET")
	api.HandleFunc("/drawings/{id:[0-9]+}/history", h.GetHistory).Methods("GET")
}

func registerFileRoutes(api *mux.Router, store artifacts.Store, templatePath string) {
	imports := handlers.NewImportHandler(store)
	exports := handlers.NewExportHandler(store, templatePath)

	api.HandleFunc("/import/{format:csv|json}", imports.Import).Methods("POST")

	api.HandleFunc("/export/cad.csv", exports.ExportCADCSV).Methods("GET")
	api.HandleFunc("/export/lpp", exports.ExportLPP).Methods("POST")
	api.HandleFunc("/export/lpp-template", exports.ExportLPPTemplate).Methods("GET")
}
