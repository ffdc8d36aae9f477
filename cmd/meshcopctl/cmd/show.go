/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/meshcop/dataset"
)

func init() {
	RootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the Active Dataset as a colorized table",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		info, err := demoActiveDataset()
		if err != nil {
			log.Fatal(err)
		}
		if err := renderInfo(info); err != nil {
			log.Fatal(err)
		}
	},
}

// renderInfo prints every present field of info as a two-column
// table, highlighting the fields that affect mesh connectivity
// (Channel, PanID, NetworkKey, MeshLocalPrefix) the way an operator
// scanning the output would want to spot first.
func renderInfo(info dataset.Info) error {
	highlight := color.New(color.FgYellow, color.Bold).SprintFunc()

	table := tablewriter.NewTable(os.Stdout)
	table.Header("Field", "Value")

	row := func(field, value string, important bool) {
		if important {
			field = highlight(field)
		}
		_ = table.Append(field, value)
	}

	if info.HasActiveTimestamp {
		row("ActiveTimestamp", fmt.Sprintf("%+v", info.ActiveTimestamp), false)
	}
	if info.HasChannel {
		row("Channel", fmt.Sprintf("%d", info.Channel), true)
	}
	if info.HasChannelMask {
		row("ChannelMask", fmt.Sprintf("0x%08X", info.ChannelMask), false)
	}
	if info.HasPanID {
		row("PanID", fmt.Sprintf("0x%04X", info.PanID), true)
	}
	if info.HasExtendedPanID {
		row("ExtendedPanID", fmt.Sprintf("%x", info.ExtendedPanID), false)
	}
	if info.HasMeshLocalPrefix {
		row("MeshLocalPrefix", fmt.Sprintf("%x", info.MeshLocalPrefix), true)
	}
	if info.HasNetworkName {
		row("NetworkName", info.NetworkName, false)
	}
	if info.HasNetworkKey {
		row("NetworkKey", "<redacted>", true)
	}
	if info.HasPskc {
		row("Pskc", "<redacted>", false)
	}
	if info.HasSecurityPolicy {
		row("SecurityPolicy", fmt.Sprintf("rotation=%dh flags=%x", info.SecurityPolicy.RotationTime, info.SecurityPolicy.Flags), false)
	}

	return table.Render()
}
