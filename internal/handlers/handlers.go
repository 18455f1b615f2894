package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/Brownie44l1/garbage-classifier/internal/imageproc"
	"github.com/Brownie44l1/garbage-classifier/internal/model"
	"github.com/Brownie44l1/garbage-classifier/internal/ui"
)

// formField is the multipart field carrying the uploaded image.
const formField = "image"

var allowedTypes = []string{"image/jpeg", "image/png"}

// ModelProvider hands out the process-wide classifier. A non-nil error means
// the model is unavailable for the rest of the process.
type ModelProvider interface {
	Get() (*model.Classifier, error)
}

type Handler struct {
	models        ModelProvider
	logger        *zap.Logger
	maxUploadSize int64
}

func NewHandler(models ModelProvider, logger *zap.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		models:        models,
		logger:        logger,
		maxUploadSize: maxUploadSize,
	}
}

// upload is a validated image from a multipart request.
type upload struct {
	filename string
	mimeType string
	data     []byte
	img      image.Image
}

// httpError carries the status a request failure should be answered with.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.models.Get(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Predict classifies a raw, already normalized NHWC tensor.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	classifier, err := h.models.Get()
	if err != nil {
		http.Error(w, "Model unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := classifier.InputSize()
	if len(req.Image) != expectedSize {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	result, err := classifier.Predict(req.Image)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PredictFromImage classifies an uploaded JPEG or PNG and answers with JSON.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	classifier, err := h.models.Get()
	if err != nil {
		http.Error(w, "Model unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.classify(classifier, up)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Index renders the upload page, or the model error when loading failed.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page := ui.Page{MaxUpload: humanize.IBytes(uint64(h.maxUploadSize))}
	status := http.StatusOK
	if _, err := h.models.Get(); err != nil {
		page.ModelError = err.Error()
		status = http.StatusServiceUnavailable
	}
	h.render(w, status, page)
}

// Classify handles the HTML form: it echoes the image back with the
// predicted class, confidence and probability chart.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	page := ui.Page{MaxUpload: humanize.IBytes(uint64(h.maxUploadSize))}

	classifier, err := h.models.Get()
	if err != nil {
		page.ModelError = err.Error()
		h.render(w, http.StatusServiceUnavailable, page)
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		page.UploadError = err.Error()
		h.render(w, statusOf(err), page)
		return
	}

	pred, err := h.classify(classifier, up)
	if err != nil {
		page.UploadError = err.Error()
		h.render(w, statusOf(err), page)
		return
	}

	result, err := ui.NewResult(pred, classifier.Threshold(), up.filename, up.mimeType, up.data)
	if err != nil {
		h.logger.Error("rendering result failed", zap.Error(err))
		page.UploadError = "Failed to render result"
		h.render(w, http.StatusInternalServerError, page)
		return
	}
	page.Result = result
	h.render(w, http.StatusOK, page)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return nil, &httpError{http.StatusBadRequest, "Failed to parse form"}
	}

	file, header, err := r.FormFile(formField)
	if err != nil {
		return nil, &httpError{http.StatusBadRequest, "No image file provided. Use 'image' as the form field name"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &httpError{http.StatusBadRequest, "Failed to read uploaded file"}
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedTypes...) {
		return nil, &httpError{http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported file type %s. Supported: JPEG, PNG", mt.String())}
	}

	h.logger.Info("received file",
		zap.String("filename", header.Filename),
		zap.String("size", humanize.IBytes(uint64(len(data)))),
		zap.String("mime", mt.String()))

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &httpError{http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG"}
	}

	h.logger.Debug("decoded image",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	return &upload{
		filename: header.Filename,
		mimeType: mt.String(),
		data:     data,
		img:      img,
	}, nil
}

// classify runs the shared fit/normalize transform and one forward pass.
func (h *Handler) classify(classifier *model.Classifier, up *upload) (*model.PredictionResponse, error) {
	inputData := imageproc.Preprocess(up.img, classifier.ImageSize())

	result, err := classifier.Predict(inputData.Data)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		return nil, &httpError{http.StatusInternalServerError, "Prediction failed"}
	}

	h.logger.Info("prediction",
		zap.String("class", result.Class),
		zap.Float32("confidence", result.Confidence),
		zap.Bool("confident", result.Confident))
	return result, nil
}

func (h *Handler) render(w http.ResponseWriter, status int, page ui.Page) {
	var buf bytes.Buffer
	if err := ui.Render(&buf, page); err != nil {
		h.logger.Error("template execution failed", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusOf(err))
}

func statusOf(err error) int {
	if he, ok := err.(*httpError); ok {
		return he.status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
