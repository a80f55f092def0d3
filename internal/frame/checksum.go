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

package frame

// Sum adds all bytes modulo 256
func Sum(data []byte) byte {
	sum := byte(0)
	for _, b := range data {
		sum += b
	}
	return sum
}

// Checksum returns the two's complement of the byte sum, the value that
// brings Sum(data)+Checksum(data) to zero modulo 256. Used for both LCS
// and DCS.
func Checksum(data []byte) byte {
	return -Sum(data)
}

// Verify reports whether chk is a valid checksum for a running sum
func Verify(sum, chk byte) bool {
	return sum+chk == 0
}
