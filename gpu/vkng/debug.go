package vkng

import (
	"context"
	"log/slog"

	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
)

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

func (d *Device) messengerInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityInfo,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    d.logDebug,
	}
}

func (d *Device) setupDebugMessenger() error {
	if !d.opts.Validation {
		return nil
	}
	var err error
	d.debug = ext_debug_utils.CreateExtensionDriverFromCoreDriver(d.instance)
	d.msgr, _, err = d.debug.CreateDebugUtilsMessenger(nil, d.messengerInfo())
	return err
}

func (d *Device) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	d.log.Log(context.Background(), severityLevel(severity), data.Message, "type", msgType.String())
	return false
}

func severityLevel(s ext_debug_utils.DebugUtilsMessageSeverityFlags) slog.Level {
	switch {
	case s&ext_debug_utils.SeverityError != 0:
		return slog.LevelError
	case s&ext_debug_utils.SeverityWarning != 0:
		return slog.LevelWarn
	case s&ext_debug_utils.SeverityInfo != 0:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
