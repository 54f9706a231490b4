// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import (
	"fmt"
	"time"
)

// Statistics tracks inbound report counters and rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalReports  uint64
	Events        uint64
	Heartbeats    uint64
	CommandEchoes uint64
	Anomalies     uint64
	ShortPackets  uint64
	BadHeaders    uint64
	UnknownEvents uint64
	InvalidStates uint64
	ButtonEvents  uint64
	EncoderEvents uint64

	// Rates (calculated)
	ReportRate float64 // reports/sec
	EventRate  float64 // events/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics for one inbound report
func (s *Statistics) Update(data []byte, validationErrors []ValidationError) {
	s.TotalReports++
	s.LastUpdateTime = time.Now()

	for _, err := range validationErrors {
		s.Anomalies++
		switch err.Type {
		case AnomalyShortPacket:
			s.ShortPackets++
		case AnomalyBadHeader, AnomalyBadSignature:
			s.BadHeaders++
		case AnomalyUnknownEvent:
			s.UnknownEvents++
		case AnomalyInvalidState:
			s.InvalidStates++
		}
	}

	data = StripReportID(data)
	if IsCommandEcho(data) {
		s.CommandEchoes++
		return
	}
	if IsAck(data) && len(data) >= MinAckSize && data[offsetEventID] == EventNone {
		s.Heartbeats++
		return
	}

	ev, ok := Decode(data)
	if !ok {
		return
	}
	s.Events++
	switch ev.(type) {
	case ButtonEvent:
		s.ButtonEvents++
	case EncoderEvent:
		s.EncoderEvents++
	}
}

// CalculateRates calculates report and event rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ReportRate = float64(s.TotalReports) / elapsed
		s.EventRate = float64(s.Events) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var eventPercent, anomalyPercent float64
	if s.TotalReports > 0 {
		eventPercent = float64(s.Events) * 100.0 / float64(s.TotalReports)
		anomalyPercent = float64(s.Anomalies) * 100.0 / float64(s.TotalReports)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Reports:   %8d\n", s.TotalReports)
	result += fmt.Sprintf("Events:          %8d (%.1f%%)\n", s.Events, eventPercent)
	result += fmt.Sprintf("  Buttons:          %5d\n", s.ButtonEvents)
	result += fmt.Sprintf("  Encoders:         %5d\n", s.EncoderEvents)
	result += fmt.Sprintf("Heartbeats:      %8d\n", s.Heartbeats)

	if s.CommandEchoes > 0 {
		result += fmt.Sprintf("Command Echoes:  %8d\n", s.CommandEchoes)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d (%.1f%%)\n", s.Anomalies, anomalyPercent)
		if s.ShortPackets > 0 {
			result += fmt.Sprintf("  Short Packets:    %5d\n", s.ShortPackets)
		}
		if s.BadHeaders > 0 {
			result += fmt.Sprintf("  Bad Headers:      %5d\n", s.BadHeaders)
		}
		if s.UnknownEvents > 0 {
			result += fmt.Sprintf("  Unknown Events:   %5d\n", s.UnknownEvents)
		}
		if s.InvalidStates > 0 {
			result += fmt.Sprintf("  Invalid States:   %5d\n", s.InvalidStates)
		}
	}

	result += fmt.Sprintf("Report Rate:     %8.1f reports/sec\n", s.ReportRate)
	result += fmt.Sprintf("Event Rate:      %8.1f events/sec\n", s.EventRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
