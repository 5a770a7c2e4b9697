package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dwarvesf/mint-relayer/internal/types/environments"
)

var _ = Describe("Logger Environment", func() {
	DescribeTable("#configFor",
		func(appEnv string, encoding string, level zapcore.Level, callerOff bool) {
			cfg := configFor(environments.Parse(appEnv))

			Expect(cfg.Encoding).To(Equal(encoding))
			Expect(cfg.Level.Level()).To(Equal(level))
			Expect(cfg.DisableCaller).To(Equal(callerOff))
		},
		Entry("prod alias", "prod", "json", zap.InfoLevel, false),
		Entry("production", "production", "json", zap.InfoLevel, false),
		Entry("staging", "staging", "json", zap.InfoLevel, true),
		Entry("unset APP_ENV", "", "console", zap.DebugLevel, true),
		Entry("dev alias", "dev", "console", zap.DebugLevel, true),
		Entry("test", "test", "json", zap.InfoLevel, false),
		Entry("unknown environment", "qa-eu", "json", zap.InfoLevel, false),
	)

	Describe("#newStagingLoggerConfig", func() {
		It("should log like production without caller and stacktraces", func() {
			staging := newStagingLoggerConfig()
			production := newProductionLoggerConfig()

			Expect(staging.OutputPaths).To(Equal(production.OutputPaths))
			Expect(staging.Development).To(Equal(production.Development))
			Expect(production.DisableStacktrace).To(BeFalse())
			Expect(staging.DisableStacktrace).To(BeTrue())
		})
	})

	Describe("#newTestLoggerConfig", func() {
		It("should build a logger that writes nowhere", func() {
			cfg := newTestLoggerConfig()
			Expect(cfg.OutputPaths).To(BeEmpty())
			Expect(cfg.ErrorOutputPaths).To(BeEmpty())

			zapLogger, err := cfg.Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(zapLogger.Core().Enabled(zap.DebugLevel)).To(BeFalse())
			Expect(zapLogger.Core().Enabled(zap.InfoLevel)).To(BeTrue())
		})
	})
})
