/*
Copyright 2024 The Attic Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpapi

import (
	"time"

	"github.com/spf13/pflag"
)

// Options allows server options to be overridden.
type Options struct {
	// ListenAddress tells the server what to listen on.
	ListenAddress string

	// ReadTimeout defines how long before we give up on the client.
	ReadTimeout time.Duration

	// ReadHeaderTimeout defines how long before we give up on the client.
	ReadHeaderTimeout time.Duration

	// WriteTimeout defines how long we take to respond before we give up.
	WriteTimeout time.Duration

	// RequestTimeout places a hard limit on all request lengths.
	RequestTimeout time.Duration

	// OTLPEndpoint defines whether to ship spans to an OTLP consumer or
	// not, and where to send them to.
	OTLPEndpoint string

	// ConfigPath is the path to the TOML policy file.
	ConfigPath string
}

// AddFlags allows server options to be modified.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&o.ListenAddress, "server-listen-address", ":8080", "API listener address.")
	f.DurationVar(&o.ReadTimeout, "server-read-timeout", time.Second, "How long to wait for the client to send the request body.")
	f.DurationVar(&o.ReadHeaderTimeout, "server-read-header-timeout", time.Second, "How long to wait for the client to send headers.")
	f.DurationVar(&o.WriteTimeout, "server-write-timeout", 10*time.Second, "How long to wait for the API to respond to the client.")
	f.DurationVar(&o.RequestTimeout, "server-request-timeout", 5*time.Second, "How long to wait for a request to be serviced.")
	f.StringVar(&o.OTLPEndpoint, "otlp-endpoint", "", "An optional OTLP endpoint to ship spans to.")
	f.StringVar(&o.ConfigPath, "config", "/etc/attic/trusted-publisher.toml", "Path to the trusted publisher policy file.")
}
