package middleware

import (
	"strconv"

	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics"
	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics/validator"
	"github.com/valyala/fasthttp"
)

type PrometheusMetrics struct {
	meter metrics.Meter
	codes [600]string
}

func NewPrometheusMetrics(meter metrics.Meter) *PrometheusMetrics {
	m := &PrometheusMetrics{meter: meter}
	for code := range m.codes {
		m.codes[code] = strconv.Itoa(code)
	}
	return m
}

func (m *PrometheusMetrics) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		// copies: fasthttp reuses request buffers after the handler returns
		path := string(ctx.Path())
		method := string(ctx.Method())

		timer := m.meter.NewResponseTimeTimer(path, method)
		m.meter.IncTotal(path, method)

		next(ctx)

		m.meter.IncStatus(path, method, m.status(ctx.Response.StatusCode()))
		m.meter.FlushResponseTimeTimer(timer)
	}
}

func (m *PrometheusMetrics) status(code int) string {
	if validator.StatusCode(code) != nil {
		return "invalid"
	}
	return m.codes[code]
}
