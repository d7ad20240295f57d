// Package logger provides the process-wide zap logger and request-scoped
// loggers carried in context.Context.
//
// # Usage
//
// Once in main:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "lazyauth"})
//	defer logger.Sync()
//
// In controllers and services:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth.flow"))
//	log.Warn("state rejected", logger.Event("csrf_rejected"), logger.StateFP(fp))
//
// Never log secrets: client secrets, signing keys, raw state values or tokens.
// Use StateFP / TokenFP with a fingerprint instead.
package logger
