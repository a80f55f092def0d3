// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mesh

// Channel numbering on the 2.4 GHz band
const (
	ChannelBase = 11
	ChannelMax  = 26
	// DefaultChannelMask enables channels 11 through 26
	DefaultChannelMask uint32 = 0x7FFF800
)

// EnergySample is the ambient noise measured on one channel
type EnergySample struct {
	Channel uint8
	Level   uint8
}

// Channels lists the channels enabled in mask in ascending order
func Channels(mask uint32) []uint8 {
	var out []uint8
	for ch := ChannelBase; ch <= ChannelMax; ch++ {
		if mask&(1<<ch) != 0 {
			out = append(out, uint8(ch))
		}
	}
	return out
}

// SamplesFromScan pairs raw energy scan levels, reported in ascending
// channel order, with the channels enabled in mask. Extra levels are
// ignored.
func SamplesFromScan(mask uint32, levels []uint8) []EnergySample {
	channels := Channels(mask)
	n := min(len(channels), len(levels))
	out := make([]EnergySample, n)
	for i := range n {
		out[i] = EnergySample{Channel: channels[i], Level: levels[i]}
	}
	return out
}

// SelectChannel returns the quietest channel. A later sample only wins on
// a strictly lower level, so ties go to the first one seen.
func SelectChannel(samples []EnergySample) (uint8, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	best := samples[0]
	for _, s := range samples[1:] {
		if s.Level < best.Level {
			best = s
		}
	}
	return best.Channel, true
}
