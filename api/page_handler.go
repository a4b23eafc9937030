package api

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
	"go.uber.org/zap"
)

var templateFuncs = template.FuncMap{
	"dataURI": func(img models.Image) template.URL {
		return template.URL(img.DataURI())
	},
}

type sampleOption struct {
	Name     string
	URL      string
	Selected bool
}

type pageData struct {
	HumanSamples   []sampleOption
	GarmentSamples []sampleOption
	HumanPreview   *sampleOption
	GarmentPreview *sampleOption
	Transcript     string
	Defaults       models.TryOnRequest
	MinSteps       int
	MaxSteps       int
	Result         *models.TryOnResult
	Error          string
}

// sampleOptions enumerates a sample directory and marks the selected entry,
// defaulting to the first one.
func sampleOptions(dir, urlPrefix, selected string) ([]sampleOption, *sampleOption, error) {
	images, err := utils.LoadImagesFromDirectory(dir)
	if err != nil {
		return nil, nil, err
	}
	names := utils.SortedNames(images)
	if _, ok := images[selected]; !ok && len(names) > 0 {
		selected = names[0]
	}

	options := make([]sampleOption, 0, len(names))
	var preview *sampleOption
	for _, name := range names {
		opt := sampleOption{Name: name, URL: urlPrefix + url.PathEscape(name), Selected: name == selected}
		options = append(options, opt)
		if opt.Selected {
			p := opt
			preview = &p
		}
	}
	return options, preview, nil
}

// IndexHandler handles GET / and renders the whole page for the session.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	humans, humanPreview, err := sampleOptions(s.opts.HumanImagesDir, "/samples/human/", r.URL.Query().Get("human"))
	if err != nil {
		s.logger.Warn("failed to list human samples", zap.Error(err))
	}
	garments, garmentPreview, err := sampleOptions(s.opts.GarmentImagesDir, "/samples/garment/", r.URL.Query().Get("garment"))
	if err != nil {
		s.logger.Warn("failed to list garment samples", zap.Error(err))
	}

	result, errMessage := sess.LastTryOn()
	data := pageData{
		HumanSamples:   humans,
		GarmentSamples: garments,
		HumanPreview:   humanPreview,
		GarmentPreview: garmentPreview,
		Transcript:     sess.TranscriptText(),
		Defaults:       models.NewTryOnRequest(),
		MinSteps:       models.MinDenoiseSteps,
		MaxSteps:       models.MaxDenoiseSteps,
		Result:         result,
		Error:          errMessage,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

// SamplesHandler handles GET /api/samples
func (s *Server) SamplesHandler(w http.ResponseWriter, r *http.Request) {
	humans, err := utils.LoadImagesFromDirectory(s.opts.HumanImagesDir)
	if err != nil {
		utils.RespondError(w, nil, "Failed to list human samples", http.StatusInternalServerError)
		return
	}
	garments, err := utils.LoadImagesFromDirectory(s.opts.GarmentImagesDir)
	if err != nil {
		utils.RespondError(w, nil, "Failed to list garment samples", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string][]string{
		"human":   utils.SortedNames(humans),
		"garment": utils.SortedNames(garments),
	})
}
