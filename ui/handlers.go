package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gocast/adapters/estimator"
	"gocast/app"
	"gocast/domain/core"
	"gocast/domain/forecast"
	"gocast/domain/panel"
	"gocast/internal/automl"
	"gocast/internal/backtest"
	"gocast/internal/strategy"
	"gocast/ports"
)

// observationJSON is the wire form of one panel observation
type observationJSON struct {
	Entity string  `json:"entity"`
	Time   int64   `json:"time"`
	Target float64 `json:"target"`
}

// exogJSON is the wire form of an exogenous block
type exogJSON struct {
	Columns []string `json:"columns"`
	Rows    []struct {
		Entity string    `json:"entity"`
		Time   int64     `json:"time"`
		Values []float64 `json:"values"`
	} `json:"rows"`
}

// modelJSON selects and parameterizes the estimator
type modelJSON struct {
	Name   string  `json:"name"`
	Alpha  float64 `json:"alpha"`
	Period int     `json:"period"`
}

// splitJSON is the wire form of a backtest split configuration
type splitJSON struct {
	TestSize   int    `json:"test_size"`
	StepSize   int    `json:"step_size"`
	NSplits    int    `json:"n_splits"`
	WindowSize int    `json:"window_size"`
	Mode       string `json:"mode"`
}

type forecastRequestJSON struct {
	Observations []observationJSON `json:"observations"`
	Exog         *exogJSON         `json:"exog"`
	FutureExog   *exogJSON         `json:"future_exog"`
	Strategy     string            `json:"strategy"`
	Lags         int               `json:"lags"`
	MaxHorizons  int               `json:"max_horizons"`
	Freq         string            `json:"freq"`
	Model        modelJSON         `json:"model"`
	Horizon      int               `json:"horizon"`
	Alphas       []float64         `json:"alphas"`
	Split        *splitJSON        `json:"split"`
}

type pointJSON struct {
	Entity  string   `json:"entity"`
	Time    int64    `json:"time"`
	Horizon int      `json:"horizon"`
	Value   float64  `json:"value"`
	Flags   []string `json:"flags,omitempty"`
}

type intervalJSON struct {
	Entity  string   `json:"entity"`
	Time    int64    `json:"time"`
	Horizon int      `json:"horizon"`
	Lower   float64  `json:"lower"`
	Point   float64  `json:"point"`
	Upper   float64  `json:"upper"`
	Flags   []string `json:"flags,omitempty"`
}

type warningJSON struct {
	Entity string `json:"entity"`
	Error  string `json:"error"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	p, err := decodePanel(req.Observations)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	svcReq, err := a.buildForecastRequest(p, req)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	result, err := a.service.Forecast(r.Context(), svcReq)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_id":  string(result.ModelID),
		"points":    encodePoints(result.Points),
		"intervals": encodeIntervals(result.Intervals),
		"warnings":  encodeWarnings(result.Warnings),
	})
}

func (a *App) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req forecastRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Split == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("split configuration is required"))
		return
	}

	p, err := decodePanel(req.Observations)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	cfg, err := a.buildStrategyConfig(req)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	result, err := a.service.Backtest(r.Context(), app.BacktestRequest{
		Panel:  p,
		Exog:   decodeExog(req.Exog),
		Config: cfg,
		Split:  decodeSplit(req.Split),
	})
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    string(result.RunID),
		"rmse":      forecast.RMSE(result.Residuals),
		"smape":     forecast.SMAPE(result.Residuals),
		"residuals": len(result.Residuals),
		"warnings":  encodeWarnings(result.Warnings),
	})
}

type searchRequestJSON struct {
	Observations []observationJSON `json:"observations"`
	Strategy     string            `json:"strategy"`
	MaxHorizons  int               `json:"max_horizons"`
	Freq         string            `json:"freq"`
	Split        *splitJSON        `json:"split"`
	MinLags      int               `json:"min_lags"`
	MaxLags      int               `json:"max_lags"`
	MaxEvals     int               `json:"max_evals"`
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Split == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("split configuration is required"))
		return
	}

	p, err := decodePanel(req.Observations)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	freq, err := core.ParseFrequency(defaultString(req.Freq, a.config.Forecast.DefaultFreq))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	base := strategy.Config{
		Strategy:    decodeStrategy(req.Strategy),
		Lags:        1, // overridden per candidate
		MaxHorizons: defaultInt(req.MaxHorizons, a.config.Forecast.DefaultHorizon),
		Freq:        freq,
		MaxParallel: a.config.Forecast.MaxParallel,
	}

	minLags, maxLags := req.MinLags, req.MaxLags
	if minLags < 1 {
		minLags = 1
	}
	if maxLags < minLags {
		maxLags = a.config.Forecast.DefaultLags
	}
	result, err := a.service.Search(r.Context(), app.SearchRequest{
		Panel: p,
		Base:  base,
		Split: decodeSplit(req.Split),
		Space: automl.DefaultSpace(minLags, maxLags, defaultInt(req.MaxEvals, 20)),
		Factory: func(params map[string]float64) ports.Regressor {
			return estimator.NewRidge(params["alpha"])
		},
	})
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"best_lags":   result.Best.Lags,
		"best_params": result.Best.Params,
		"best_score":  result.BestScore,
		"evaluations": len(result.Evaluated),
	})
}

func (a *App) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := a.service.ListDatasets(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	ids := make([]string, len(datasets))
	for i, id := range datasets {
		ids[i] = string(id)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": ids})
}

func (a *App) handleAppendObservations(w http.ResponseWriter, r *http.Request) {
	dataset := core.DatasetID(chi.URLParam(r, "id"))

	var body struct {
		Observations []observationJSON `json:"observations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	obs := make([]panel.Observation, len(body.Observations))
	for i, o := range body.Observations {
		obs[i] = panel.Observation{Entity: panel.EntityID(o.Entity), Time: o.Time, Target: o.Target}
	}
	if err := a.service.AppendObservations(r.Context(), dataset, obs); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"appended": len(obs)})
}

func (a *App) handleDatasetForecast(w http.ResponseWriter, r *http.Request) {
	dataset := core.DatasetID(chi.URLParam(r, "id"))

	var req forecastRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	p, err := a.service.LoadPanel(r.Context(), dataset)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	svcReq, err := a.buildForecastRequest(p, req)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	result, err := a.service.Forecast(r.Context(), svcReq)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_id":  string(result.ModelID),
		"points":    encodePoints(result.Points),
		"intervals": encodeIntervals(result.Intervals),
		"warnings":  encodeWarnings(result.Warnings),
	})
}

func (a *App) buildForecastRequest(p *panel.Panel, req forecastRequestJSON) (app.ForecastRequest, error) {
	cfg, err := a.buildStrategyConfig(req)
	if err != nil {
		return app.ForecastRequest{}, err
	}
	out := app.ForecastRequest{
		Panel:      p,
		Exog:       decodeExog(req.Exog),
		FutureExog: decodeExog(req.FutureExog),
		Config:     cfg,
		Horizon:    defaultInt(req.Horizon, a.config.Forecast.DefaultHorizon),
		Alphas:     req.Alphas,
	}
	if req.Split != nil {
		out.Split = decodeSplit(req.Split)
	} else if len(req.Alphas) > 0 {
		// Interval calibration needs residuals; derive a minimal rolling
		// evaluation from the horizon when the caller gave none.
		out.Split = backtest.SplitConfig{
			TestSize: out.Horizon,
			StepSize: out.Horizon,
			NSplits:  3,
			Mode:     backtest.Expanding,
		}
	}
	return out, nil
}

func (a *App) buildStrategyConfig(req forecastRequestJSON) (strategy.Config, error) {
	freqAlias := defaultString(req.Freq, a.config.Forecast.DefaultFreq)
	freq, err := core.ParseFrequency(freqAlias)
	if err != nil {
		return strategy.Config{}, err
	}

	reg, err := buildRegressor(req.Model)
	if err != nil {
		return strategy.Config{}, err
	}

	return strategy.Config{
		Strategy:    decodeStrategy(req.Strategy),
		Lags:        defaultInt(req.Lags, a.config.Forecast.DefaultLags),
		MaxHorizons: defaultInt(req.MaxHorizons, a.config.Forecast.DefaultHorizon),
		Freq:        freq,
		Regressor:   reg,
		MaxParallel: a.config.Forecast.MaxParallel,
	}, nil
}

func buildRegressor(m modelJSON) (ports.Regressor, error) {
	switch strings.ToLower(m.Name) {
	case "", "ridge":
		alpha := m.Alpha
		if alpha <= 0 {
			alpha = 1.0
		}
		return estimator.NewRidge(alpha), nil
	case "ols":
		return estimator.NewOLS(), nil
	case "mean":
		return estimator.NewMean(), nil
	case "naive":
		return estimator.NewNaive(), nil
	case "seasonal_naive":
		if m.Period < 1 {
			return nil, core.NewValidationError("model", "seasonal_naive needs a period")
		}
		return estimator.NewSeasonalNaive(m.Period), nil
	default:
		return nil, core.NewValidationError("model", fmt.Sprintf("unknown model %q", m.Name))
	}
}

func decodeStrategy(s string) strategy.Kind {
	switch strings.ToLower(s) {
	case "direct":
		return strategy.Direct
	case "ensemble":
		return strategy.Ensemble
	default:
		return strategy.Recursive
	}
}

func decodePanel(obs []observationJSON) (*panel.Panel, error) {
	converted := make([]panel.Observation, len(obs))
	for i, o := range obs {
		converted[i] = panel.Observation{Entity: panel.EntityID(o.Entity), Time: o.Time, Target: o.Target}
	}
	return panel.FromObservations(converted)
}

func decodeExog(x *exogJSON) *panel.Exog {
	if x == nil {
		return nil
	}
	out := panel.NewExog(x.Columns)
	for _, row := range x.Rows {
		out.Set(panel.EntityID(row.Entity), row.Time, row.Values)
	}
	return out
}

func decodeSplit(s *splitJSON) backtest.SplitConfig {
	mode := backtest.Expanding
	if strings.ToLower(s.Mode) == "sliding" {
		mode = backtest.Sliding
	}
	return backtest.SplitConfig{
		TestSize:   s.TestSize,
		StepSize:   s.StepSize,
		NSplits:    s.NSplits,
		WindowSize: s.WindowSize,
		Mode:       mode,
	}
}

func encodePoints(points []forecast.Point) []pointJSON {
	out := make([]pointJSON, len(points))
	for i, p := range points {
		out[i] = pointJSON{
			Entity:  string(p.Entity),
			Time:    p.Time,
			Horizon: p.Horizon,
			Value:   p.Value,
			Flags:   encodeFlags(p.Flags),
		}
	}
	return out
}

func encodeIntervals(intervals []forecast.Interval) []intervalJSON {
	out := make([]intervalJSON, len(intervals))
	for i, iv := range intervals {
		out[i] = intervalJSON{
			Entity:  string(iv.Entity),
			Time:    iv.Time,
			Horizon: iv.Horizon,
			Lower:   iv.Lower,
			Point:   iv.Point,
			Upper:   iv.Upper,
			Flags:   encodeFlags(iv.Flags),
		}
	}
	return out
}

func encodeWarnings(warnings []forecast.Warning) []warningJSON {
	out := make([]warningJSON, len(warnings))
	for i, warn := range warnings {
		out[i] = warningJSON{Entity: string(warn.Entity), Error: warn.Err.Error()}
	}
	return out
}

func encodeFlags(flags []forecast.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func defaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers already sent; nothing left to do but log.
		return
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyPanel),
		errors.Is(err, core.ErrDuplicateTimestamp),
		errors.Is(err, core.ErrUnknownFrequency),
		errors.Is(err, core.ErrConfigurationMismatch):
		return http.StatusBadRequest
	case core.IsEntityDataError(err),
		errors.Is(err, core.ErrInsufficientResiduals),
		errors.Is(err, core.ErrMissingFutureRegressors),
		errors.Is(err, core.ErrSearchExhausted):
		return http.StatusUnprocessableEntity
	case strings.Contains(err.Error(), "validation failed"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
