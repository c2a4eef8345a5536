package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/k8stag/k8stag/internal/document"
	"github.com/k8stag/k8stag/internal/k8s_client"
	"github.com/k8stag/k8stag/pkg/constants"
	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/k8stag/k8stag/pkg/k8stag"
	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/k8stag/k8stag/pkg/metrics"
	"github.com/k8stag/k8stag/pkg/otel"
	"github.com/k8stag/k8stag/pkg/validation"
	"github.com/k8stag/k8stag/pkg/version"
)

const (
	verbCreate = constants.VerbCreate
	verbDelete = constants.VerbDelete

	outputDocument = "document"
	outputTyped    = "typed"
)

// newClientset is replaced in tests
var newClientset = k8s_client.NewClientset

// inputOptions select the template and the values it is rendered with
type inputOptions struct {
	Filename   string   `yaml:"filename" validate:"required"`
	ValuesFile string   `yaml:"values" validate:"omitempty,file"`
	Set        []string `yaml:"set"`
}

type renderOptions struct {
	Output string `yaml:"output" validate:"oneof=document typed"`
}

type applyOptions struct {
	KubeConfig      string        `yaml:"kubeconfig"`
	Context         string        `yaml:"context"`
	QPS             float32       `yaml:"qps" validate:"gte=0"`
	Burst           int           `yaml:"burst" validate:"gte=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gte=0"`
	DryRun          bool          `yaml:"dryRun"`
	MetricsTextfile string        `yaml:"metricsTextfile"`
}

func addInputFlags(cmd *cobra.Command, in *inputOptions) {
	cmd.Flags().StringVarP(&in.Filename, "filename", "f", "",
		"Manifest template to read, - for stdin")
	cmd.Flags().StringVar(&in.ValuesFile, "values", "",
		"YAML file with template values")
	cmd.Flags().StringArrayVar(&in.Set, "set", nil,
		"Template value as key=value, dotted keys nest (repeatable, overrides --values)")
}

func newRenderCmd(logOpts *logOptions) *cobra.Command {
	in := &inputOptions{}
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a manifest template and print the mapped documents",
		Long: `Render a manifest template, map every document onto its typed object and
print the result. Mapping failures such as unknown fields are reported
without contacting a cluster.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, logOpts, in, opts)
		},
	}
	addInputFlags(cmd, in)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputDocument,
		"Output form: document (the rendered source) or typed (the mapped object)")
	return cmd
}

func newApplyCmd(logOpts *logOptions, verb string) *cobra.Command {
	in := &inputOptions{}
	opts := &applyOptions{}

	short := "Create every object of a manifest template"
	if verb == verbDelete {
		short = "Delete every object of a manifest template, in reverse order"
	}

	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, verb, logOpts, in, opts)
		},
	}
	addInputFlags(cmd, in)
	cmd.Flags().StringVar(&opts.KubeConfig, "kubeconfig", os.Getenv("KUBECONFIG"),
		"Path to kubeconfig, empty for in-cluster config. Env: KUBECONFIG")
	cmd.Flags().StringVar(&opts.Context, "context", "",
		"Kubeconfig context to use")
	cmd.Flags().Float32Var(&opts.QPS, "qps", k8s_client.DefaultQPS,
		"Client queries per second")
	cmd.Flags().IntVar(&opts.Burst, "burst", k8s_client.DefaultBurst,
		"Client burst")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0,
		"Per request timeout, 0 for none")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false,
		"Send requests as server-side dry runs")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "",
		"Write Prometheus metrics to this file on exit")
	return cmd
}

func runRender(cmd *cobra.Command, logOpts *logOptions, in *inputOptions, opts *renderOptions) error {
	ctx := cmd.Context()
	log, err := newLogger(cmd, logOpts)
	if err != nil {
		return err
	}
	if err := validateAll(in, opts); err != nil {
		return err
	}

	resources, err := loadResources(ctx, cmd, k8stag.NewClient(nil, k8stag.WithLogger(log)), in)
	if err != nil {
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to render %s", in.Filename)
		return err
	}

	out := cmd.OutOrStdout()
	for i, res := range resources {
		if i > 0 {
			_, _ = fmt.Fprintln(out, "---")
		}
		text := res.String()
		if opts.Output == outputDocument {
			if text, err = res.Serialize(); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprint(out, text)
	}
	return nil
}

func runApply(cmd *cobra.Command, verb string, logOpts *logOptions, in *inputOptions, opts *applyOptions) error {
	ctx := cmd.Context()
	log, err := newLogger(cmd, logOpts)
	if err != nil {
		return err
	}
	if err := validateAll(in, opts); err != nil {
		return err
	}

	tp, err := otel.InitTracer("k8stag", version.Version, otel.GetTraceSampleRatio(log, ctx))
	if err != nil {
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to initialize OpenTelemetry")
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), OTelShutdownTimeout)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			errCtx := logger.WithErrorField(shutdownCtx, err)
			log.Warnf(errCtx, "Failed to shutdown TracerProvider")
		}
	}()

	recorder := metrics.NewRecorder(metrics.DefaultConfig())
	if opts.MetricsTextfile != "" {
		defer func() {
			if err := recorder.WriteTextfile(opts.MetricsTextfile); err != nil {
				errCtx := logger.WithErrorField(ctx, err)
				log.Warnf(errCtx, "Failed to write metrics to %s", opts.MetricsTextfile)
			}
		}()
	}

	clientset, err := newClientset(ctx, k8s_client.ClientConfig{
		KubeConfigPath: opts.KubeConfig,
		Context:        opts.Context,
		QPS:            opts.QPS,
		Burst:          opts.Burst,
		Timeout:        opts.Timeout,
	}, log)
	if err != nil {
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to create Kubernetes client")
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	client := k8stag.NewClient(clientset,
		k8stag.WithLogger(log),
		k8stag.WithMetrics(recorder),
		k8stag.WithTracerProvider(tp),
		k8stag.WithDryRun(opts.DryRun),
	)

	resources, err := loadResources(ctx, cmd, client, in)
	if err != nil {
		errCtx := logger.WithErrorField(ctx, err)
		log.Errorf(errCtx, "Failed to render %s", in.Filename)
		return err
	}

	suffix := ""
	if opts.DryRun {
		suffix = " (server dry run)"
	}

	// Objects are deleted in reverse so dependents go before what they depend on.
	if verb == verbDelete {
		for i, j := 0, len(resources)-1; i < j; i, j = i+1, j-1 {
			resources[i], resources[j] = resources[j], resources[i]
		}
	}

	var merr *multierror.Error
	out := cmd.OutOrStdout()
	for _, res := range resources {
		switch verb {
		case verbCreate:
			_, err = res.Create(ctx)
		case verbDelete:
			err = res.Delete(ctx)
		}
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s %s: %w", verb, describe(res), err))
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %sd%s\n", describe(res), verb, suffix)
	}
	return merr.ErrorOrNil()
}

func describe(res *k8stag.Resource) string {
	return strings.ToLower(res.Kind()) + "/" + res.Name()
}

func newLogger(cmd *cobra.Command, logOpts *logOptions) (logger.Logger, error) {
	if err := validation.ValidateStruct(logOpts); err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(buildLoggerConfig(logOpts, cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

func validateAll(values ...interface{}) error {
	for _, v := range values {
		if err := validation.ValidateStruct(v); err != nil {
			return err
		}
	}
	return nil
}

// loadResources renders the template named by in and maps every document
func loadResources(ctx context.Context, cmd *cobra.Command, client *k8stag.Client, in *inputOptions) ([]*k8stag.Resource, error) {
	text, err := readInput(cmd.InOrStdin(), in.Filename)
	if err != nil {
		return nil, err
	}
	values, err := loadValues(in)
	if err != nil {
		return nil, err
	}
	return client.RenderAll(ctx, in.Filename, text, values)
}

func readInput(stdin io.Reader, filename string) (string, error) {
	var data []byte
	var err error
	if filename == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(filename)
	}
	if err != nil {
		return "", apperrors.InvalidInput("failed to read %s: %v", filename, err)
	}
	return string(data), nil
}

// loadValues merges the values file with --set overrides.
func loadValues(in *inputOptions) (map[string]interface{}, error) {
	values := map[string]interface{}{}

	if in.ValuesFile != "" {
		data, err := os.ReadFile(in.ValuesFile)
		if err != nil {
			return nil, apperrors.InvalidInput("failed to read values file %s: %v", in.ValuesFile, err)
		}
		node, err := document.Parse(string(data))
		if err != nil {
			return nil, err
		}
		if node != nil {
			m, ok := node.(map[string]interface{})
			if !ok {
				return nil, apperrors.InvalidInput("values file %s must hold a mapping, got %T", in.ValuesFile, node)
			}
			values = m
		}
	}

	for _, assignment := range in.Set {
		key, raw, ok := strings.Cut(assignment, "=")
		if !ok || key == "" {
			return nil, apperrors.InvalidInput("--set %q: want key=value", assignment)
		}
		if err := setValue(values, strings.Split(key, "."), parseScalar(raw)); err != nil {
			return nil, apperrors.InvalidInput("--set %q: %v", assignment, err)
		}
	}
	return values, nil
}

// parseScalar reads raw as a YAML scalar, so "3" is a number and "true" a bool.
func parseScalar(raw string) interface{} {
	node, err := document.Parse(raw)
	if err != nil || node == nil {
		return raw
	}
	switch node.(type) {
	case map[string]interface{}, []interface{}:
		return raw
	}
	return node
}

func setValue(values map[string]interface{}, path []string, value interface{}) error {
	for i, key := range path[:len(path)-1] {
		next, exists := values[key]
		if !exists {
			child := map[string]interface{}{}
			values[key] = child
			values = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s is not a mapping", strings.Join(path[:i+1], "."))
		}
		values = child
	}
	values[path[len(path)-1]] = value
	return nil
}
