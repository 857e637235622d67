package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

// TestMinimalEncoderNeverDiscardsFields ensures the minimal encoder NEVER
// silently discards log fields. Special-cased fields (job_id, number,
// duration_ms) get compact formatting; everything else must still appear
// as key=value.
func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing field preservation",
	}

	testFields := []struct {
		field    zapcore.Field
		mustFind string // What we must find in the output
	}{
		{zap.String("status", "FINISHED"), "status=FINISHED"},
		{zap.String("job_name", "fit-model"), "job_name=fit-model"},
		{zap.Bool("deleted", true), "deleted=true"},
		{zap.Float64("value", 0.8), "value=0.8"},
		{zap.Strings("scalars", []string{"loss", "accuracy"}), "scalars=[loss accuracy]"},

		// Random field names that should NEVER be dropped
		{zap.String("random_field_xyz", "important_data"), "random_field_xyz=important_data"},
		{zap.Int("critical_count", 999), "critical_count=999"},
		{zap.String("error_details", "exit status 1"), "error_details=exit status 1"},

		// Fields with underscores and dots (edge cases)
		{zap.String("field_with_underscores", "test"), "field_with_underscores=test"},
		{zap.String("field.with.dots", "test2"), "field.with.dots=test2"},

		// Numeric fields
		{zap.Int32("int32_field", 42), "int32_field=42"},
		{zap.Int64("int64_field", 9999999), "int64_field=9999999"},

		// Boolean fields
		{zap.Bool("success", false), "success=false"},

		// Error fields (critical for debugging!)
		{zap.Error(nil), ""}, // nil error shouldn't crash
		{zap.String("error", "something went wrong"), "error=something went wrong"},

		// Special-cased fields keep their compact formatting
		{zap.String("job_id", "b94c"), "b94c"},
		{zap.Int("number", 7), "#7"},
		{zap.Int("duration_ms", 42), "42ms"},
	}

	var allFields []zapcore.Field
	for _, tf := range testFields {
		allFields = append(allFields, tf.field)
	}

	buf, err := encoder.EncodeEntry(entry, allFields)
	if err != nil {
		t.Fatalf("Failed to encode entry: %v", err)
	}

	output := buf.String()
	cleanOutput := stripANSI(output)

	missingFields := []string{}
	for _, tf := range testFields {
		if tf.mustFind != "" && !strings.Contains(cleanOutput, tf.mustFind) {
			missingFields = append(missingFields, tf.mustFind)
			t.Errorf("Field was silently discarded from log output: %s", tf.mustFind)
		}
	}

	if len(missingFields) > 0 {
		t.Fatalf("Logger is silently discarding %d fields! Missing: %v\nClean output was: %s\nRaw output was: %s",
			len(missingFields), missingFields, cleanOutput, output)
	}
}

// TestMinimalEncoderFieldCount ensures that the NUMBER of fields in equals
// the number of fields that appear in the output (minus special formatting)
func TestMinimalEncoderFieldCount(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Field count test",
	}

	// Add exactly 10 unique fields
	fields := []zapcore.Field{
		zap.String("field1", "value1"),
		zap.String("field2", "value2"),
		zap.String("field3", "value3"),
		zap.String("field4", "value4"),
		zap.String("field5", "value5"),
		zap.Int("field6", 6),
		zap.Int("field7", 7),
		zap.Bool("field8", true),
		zap.Float64("field9", 9.9),
		zap.String("field10", "value10"),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	output := buf.String()

	// Each field should produce a "key=value" pattern
	fieldCount := strings.Count(output, "field1=") +
		strings.Count(output, "field2=") +
		strings.Count(output, "field3=") +
		strings.Count(output, "field4=") +
		strings.Count(output, "field5=") +
		strings.Count(output, "field6=") +
		strings.Count(output, "field7=") +
		strings.Count(output, "field8=") +
		strings.Count(output, "field9=") +
		strings.Count(output, "field10=")

	if fieldCount != 10 {
		t.Errorf("Expected 10 fields in output, but found %d. Output: %s", fieldCount, output)
	}
}

// TestJobEventLogging tests the shape produced by the scheduler's job
// transition logs: symbol pulled out of the fields, ID and number compact.
func TestJobEventLogging(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "agent.queue",
		Message:    "Job finished [job:b94c]",
	}

	fields := []zapcore.Field{
		zap.String("symbol", "꩜"),
		zap.String("job_id", "b94c1de2"),
		zap.Int("number", 12),
		zap.String("status", "FINISHED"),
		zap.Int("exit_code", 0),
		zap.Int("duration_ms", 1842),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode job event log: %v", err)
	}

	output := buf.String()
	cleanOutput := stripANSI(output)

	required := []string{
		"꩜",
		"a.queue",
		"b94c1de2",
		"#12",
		"status=FINISHED",
		"exit_code=0",
		"1842ms",
	}

	for _, want := range required {
		if !strings.Contains(cleanOutput, want) {
			t.Errorf("Job event field missing from log: %s\nFull output: %s", want, cleanOutput)
		}
	}

	// The symbol is shown before the message, not as symbol=꩜
	if strings.Contains(cleanOutput, "symbol=") {
		t.Errorf("Symbol should be rendered before the message, not as a key=value pair: %s", cleanOutput)
	}
}

// TestUnknownFieldTypes tests that the encoder handles all possible field types
// without crashing or silently dropping them
func TestUnknownFieldTypes(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing unknown field types",
	}

	fields := []zapcore.Field{
		zap.Complex128("complex", complex(1.0, 2.0)),
		zap.Complex64("complex64", complex64(complex(3.0, 4.0))),
		zap.Duration("duration", 5*time.Second),
		zap.Time("timestamp", time.Now()),
		zap.Uint("uint", 100),
		zap.Uint8("uint8", 200),
		zap.Uint16("uint16", 30000),
		zap.Uint32("uint32", 4000000),
		zap.Uint64("uint64", 5000000000),
		zap.Uintptr("uintptr", 0xDEADBEEF),
		zap.ByteString("bytes", []byte("hello world")),
		zap.Binary("binary", []byte{0x01, 0x02, 0x03}),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode complex types: %v", err)
	}

	output := buf.String()
	cleanOutput := stripANSI(output)

	// Verify that SOME representation of each field appears
	// We don't care about exact formatting, just that it's not silently dropped
	expectedSubstrings := []string{
		"complex",
		"complex64",
		"duration",
		"timestamp",
		"uint",
		"bytes",
		"binary",
	}

	for _, expected := range expectedSubstrings {
		if !strings.Contains(cleanOutput, expected) {
			t.Errorf("Field with key '%s' was completely dropped from output: %s", expected, cleanOutput)
		}
	}
}

// TestAbbreviateName checks component name shortening for the console column
func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"server", "server"},
		{"agent.queue", "a.queue"},
		{"agent.cloud.poller", "a.cloud.poller"},
	}

	for _, tt := range tests {
		if got := abbreviateName(tt.in); got != tt.want {
			t.Errorf("abbreviateName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
