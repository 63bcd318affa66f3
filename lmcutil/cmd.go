/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package lmcutil contains the command line interface of the reacting flow
// solver and the functions that turn its configuration into a simulation.
package lmcutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/pinebai/lmc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// option is a configuration option.
type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	d := lmc.DefaultConfig()
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired log file location. It can
              include environment variables. If it is empty, messages are only
              written to standard output.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Mechanism",
			usage: `
              Mechanism is the path to the TOML file describing the species
              properties of the mixture and, optionally, a one-step reaction.
              It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of cells in the x direction.`,
			defaultVal: 64,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of cells in the y direction. Set it to 1
              for a one-dimensional problem.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the cell width in the x direction [m].`,
			defaultVal: 1.e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the cell width in the y direction [m]. It defaults
              to 1 m in one-dimensional problems.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.PeriodicX",
			usage: `
              Grid.PeriodicX selects periodic boundaries in the x direction.
              Otherwise the boundaries are zero-gradient.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.PeriodicY",
			usage: `
              Grid.PeriodicY selects periodic boundaries in the y direction.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Pressure",
			usage: `
              Pressure is the thermodynamic pressure [Pa].`,
			defaultVal: d.Pressure,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PatchSize",
			usage: `
              PatchSize is the largest number of cells per direction in a
              patch of the grid. Patches are processed concurrently.`,
			defaultVal: d.PatchSize,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SDC.Sweeps",
			usage: `
              SDC.Sweeps is the number of deferred correction sweeps per step.`,
			defaultVal: d.SDC.Sweeps,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Diffusion.UseMCDD",
			usage: `
              Diffusion.UseMCDD selects the coupled multigrid solve of the
              species and heat equations. If false, species and enthalpy are
              solved one after the other.`,
			defaultVal: d.Diffusion.UseMCDD,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Diffusion.ImplicitEnthalpy",
			usage: `
              Diffusion.ImplicitEnthalpy solves the enthalpy implicitly when
              Diffusion.UseMCDD is false.`,
			defaultVal: d.Diffusion.ImplicitEnthalpy,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.Mode",
			usage: `
              MCDD.Mode is the unknown of the heat equation: 'temperature'
              or 'enthalpy'.`,
			defaultVal: d.MCDD.Mode.String(),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.Nu1",
			usage: `
              MCDD.Nu1 is the number of relaxation sweeps before the coarse
              grid correction on each multigrid level, finest first. The
              last value applies to every deeper level.`,
			defaultVal: d.MCDD.Nu1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.Nu2",
			usage: `
              MCDD.Nu2 is the number of relaxation sweeps after the coarse
              grid correction on each multigrid level, finest first. The
              last value applies to every deeper level.`,
			defaultVal: d.MCDD.Nu2,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.Nub",
			usage: `
              MCDD.Nub is the number of relaxation sweeps on the coarsest
              level.`,
			defaultVal: d.MCDD.Nub,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.Gamma",
			usage: `
              MCDD.Gamma is the number of coarse cycles per visit: 1 gives
              V-cycles and 2 W-cycles.`,
			defaultVal: d.MCDD.Gamma,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.NumCycles",
			usage: `
              MCDD.NumCycles is the largest number of multigrid cycles per solve.`,
			defaultVal: d.MCDD.NumCycles,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.MaxLevels",
			usage: `
              MCDD.MaxLevels is the largest number of multigrid levels.`,
			defaultVal: d.MCDD.MaxLevels,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.AbsTol",
			usage: `
              MCDD.AbsTol is the normalized residual below which a solve is
              converged.`,
			defaultVal: d.MCDD.AbsTol,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.ReduxTol",
			usage: `
              MCDD.ReduxTol is the reduction of the normalized residual
              relative to the first cycle at which a solve is converged.`,
			defaultVal: d.MCDD.ReduxTol,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.StallTol",
			usage: `
              MCDD.StallTol is the largest correction at which a solve is
              considered stalled.`,
			defaultVal: d.MCDD.StallTol,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.SpeciesRelax",
			usage: `
              MCDD.SpeciesRelax is the relaxation factor of the species equations.`,
			defaultVal: d.MCDD.SpeciesRelax,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.TempRelax",
			usage: `
              MCDD.TempRelax is the relaxation factor of the heat equation.`,
			defaultVal: d.MCDD.TempRelax,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MCDD.Verbose",
			usage: `
              MCDD.Verbose > 0 logs a summary of every multigrid cycle.`,
			defaultVal: d.MCDD.Verbose,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.CFL",
			usage: `
              TimeStep.CFL is the Courant number used to estimate the time step.`,
			defaultVal: d.TimeStep.CFL,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.FixedDt",
			usage: `
              TimeStep.FixedDt, if positive, is the size of every time step [s].`,
			defaultVal: d.TimeStep.FixedDt,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.MaxDt",
			usage: `
              TimeStep.MaxDt, if positive, bounds every time step [s].`,
			defaultVal: d.TimeStep.MaxDt,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.InitShrink",
			usage: `
              TimeStep.InitShrink scales the first estimated time step.`,
			defaultVal: d.TimeStep.InitShrink,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.ChangeMax",
			usage: `
              TimeStep.ChangeMax bounds the growth of the time step from one
              step to the next.`,
			defaultVal: d.TimeStep.ChangeMax,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.DivuCeiling",
			usage: `
              TimeStep.DivuCeiling limits the time step so that the velocity
              divergence cannot drive the density below
              TimeStep.MinRhoDivuCeiling.`,
			defaultVal: d.TimeStep.DivuCeiling,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.DivuDtFactor",
			usage: `
              TimeStep.DivuDtFactor scales the divergence time step limit.`,
			defaultVal: d.TimeStep.DivuDtFactor,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.MinRhoDivuCeiling",
			usage: `
              TimeStep.MinRhoDivuCeiling is the smallest density [kg/m³]
              allowed by the divergence time step limit.`,
			defaultVal: d.TimeStep.MinRhoDivuCeiling,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.StopTime",
			usage: `
              TimeStep.StopTime, if positive, is the simulation end time [s].`,
			defaultVal: d.TimeStep.StopTime,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.MaxSteps",
			usage: `
              TimeStep.MaxSteps, if not negative, is the number of time steps
              to take.`,
			defaultVal: d.TimeStep.MaxSteps,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep.StepRetries",
			usage: `
              TimeStep.StepRetries is the number of times a failed step is
              retried with half the time step.`,
			defaultVal: d.TimeStep.StepRetries,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Typical.Density",
			usage: `
              Typical.Density is the reference density [kg/m³] used to
              normalize residuals. If it is not positive it is computed from
              the initial state.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Typical.RhoH",
			usage: `
              Typical.RhoH is the reference enthalpy density [J/m³].`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Typical.Temp",
			usage: `
              Typical.Temp is the reference temperature [K].`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Typical.Species",
			usage: `
              Typical.Species maps species names to reference mass fractions.
              Species that are not listed are computed from the initial state.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ClipNegativeRhoY",
			usage: `
              ClipNegativeRhoY sets negative species densities to zero before
              the density is recomputed from their sum.`,
			defaultVal: d.ClipNegativeRhoY,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "FloorSpecies",
			usage: `
              FloorSpecies sets negative species densities to zero after
              every step.`,
			defaultVal: d.FloorSpecies,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "IC.Y",
			usage: `
              IC.Y maps species names to expressions of the cell center
              coordinates 'x' and 'y' [m] and the domain size 'Lx' and 'Ly'
              giving the initial mass fractions. Species that are not listed
              start at zero; the fractions are normalized to sum to one.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "IC.T",
			usage: `
              IC.T is an expression giving the initial temperature [K].`,
			defaultVal: "300",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "IC.U",
			usage: `
              IC.U is an expression giving the initial x velocity [m/s].`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "IC.V",
			usage: `
              IC.V is an expression giving the initial y velocity [m/s].`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("LMC")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("lmc: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "lmc",
	Short: "A low Mach number reacting flow solver.",
	Long: `lmc advances a low Mach number reacting flow with spectral deferred
corrections, coupling stiff chemistry with multicomponent diffusion that is
solved by nonlinear multigrid.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'LMC_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of lmc.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("lmc v%s\n", lmc.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation.",
	Long: `run initializes a reacting flow from the configured initial conditions
and advances it until TimeStep.MaxSteps steps have been taken or
TimeStep.StopTime is reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := Run(Cfg, cmd.OutOrStdout())
		return err
	},
	DisableAutoGenTag: true,
}
