package storage

import (
	"context"
	"time"

	"github.com/docker/go-metrics"
	"github.com/mapsign/mapsign"
	prometheus "github.com/mapsign/mapsign/metrics"
)

var (
	// TODO: redis calls are generally <1ms, finer buckets than the 5ms default would help.
	templateTimer  = prometheus.StorageNamespace.NewLabeledTimer("template", "The latency of template store operations", "operation")
	signatureTimer = prometheus.StorageNamespace.NewLabeledTimer("signature", "The latency of signature store operations", "operation")
)

func init() {
	metrics.Register(prometheus.StorageNamespace)
}

type prometheusTemplateService struct {
	mapsign.TemplateService
	latencyTimer metrics.LabeledTimer
}

// NewPrometheusTemplateService records the latency of every call on wrap,
// labelled by operation.
func NewPrometheusTemplateService(wrap mapsign.TemplateService) mapsign.TemplateService {
	return &prometheusTemplateService{
		wrap,
		templateTimer,
	}
}

func (p *prometheusTemplateService) Add(ctx context.Context, owner string, tpl mapsign.Template) (string, error) {
	start := time.Now()
	name, e := p.TemplateService.Add(ctx, owner, tpl)
	p.latencyTimer.WithValues("Add").UpdateSince(start)
	return name, e
}

func (p *prometheusTemplateService) Get(ctx context.Context, owner, name string) (mapsign.Template, error) {
	start := time.Now()
	tpl, e := p.TemplateService.Get(ctx, owner, name)
	p.latencyTimer.WithValues("Get").UpdateSince(start)
	return tpl, e
}

func (p *prometheusTemplateService) Delete(ctx context.Context, owner, name string) error {
	start := time.Now()
	e := p.TemplateService.Delete(ctx, owner, name)
	p.latencyTimer.WithValues("Delete").UpdateSince(start)
	return e
}

type prometheusSignatureService struct {
	mapsign.SignatureService
	latencyTimer metrics.LabeledTimer
}

// NewPrometheusSignatureService records the latency of every call on wrap,
// labelled by operation.
func NewPrometheusSignatureService(wrap mapsign.SignatureService) mapsign.SignatureService {
	return &prometheusSignatureService{
		wrap,
		signatureTimer,
	}
}

func (p *prometheusSignatureService) AddCertificate(ctx context.Context, signer string, cert mapsign.Certificate) (string, error) {
	start := time.Now()
	id, e := p.SignatureService.AddCertificate(ctx, signer, cert)
	p.latencyTimer.WithValues("AddCertificate").UpdateSince(start)
	return id, e
}

func (p *prometheusSignatureService) DelCertificate(ctx context.Context, signer, id string) error {
	start := time.Now()
	e := p.SignatureService.DelCertificate(ctx, signer, id)
	p.latencyTimer.WithValues("DelCertificate").UpdateSince(start)
	return e
}

func (p *prometheusSignatureService) AddSignature(ctx context.Context, signer, resource string, cert mapsign.Certificate) (string, error) {
	start := time.Now()
	id, e := p.SignatureService.AddSignature(ctx, signer, resource, cert)
	p.latencyTimer.WithValues("AddSignature").UpdateSince(start)
	return id, e
}

func (p *prometheusSignatureService) IsAuthorized(ctx context.Context, signer, resource, credential string) (bool, error) {
	start := time.Now()
	ok, e := p.SignatureService.IsAuthorized(ctx, signer, resource, credential)
	p.latencyTimer.WithValues("IsAuthorized").UpdateSince(start)
	return ok, e
}
