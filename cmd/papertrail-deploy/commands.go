package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	"github.com/serverless-papertrail/log-forwarder/cfn"
	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/config"
	"github.com/serverless-papertrail/log-forwarder/logger"
	"github.com/serverless-papertrail/log-forwarder/loggroup"
	"github.com/serverless-papertrail/log-forwarder/packaging"
	"github.com/serverless-papertrail/log-forwarder/sink"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// DefaultTemplatePath is where the host writes the compiled update template.
const DefaultTemplatePath = ".serverless/cloudformation-template-update-stack.json"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "papertrail-deploy",
		Short:        "Provision the Papertrail log forwarder of a serverless service",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("service-path", ".", "service directory")
	rootCmd.PersistentFlags().String("config", "serverless.yml", "service definition, relative to the service directory")

	packageCmd := &cobra.Command{
		Use:   "package",
		Short: "Render the forwarder artifact and register the forwarder function",
		Args:  cobra.NoArgs,
		RunE:  runPackage,
	}
	packageCmd.Flags().String("identity-template", "", "custom identity template (default: built in)")

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Add log routing resources to the compiled template",
		Args:  cobra.NoArgs,
		RunE:  runCompile,
	}
	compileCmd.Flags().String("template", DefaultTemplatePath, "compiled CloudFormation template, relative to the service directory")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove the forwarder build directory and registration",
		Args:  cobra.NoArgs,
		RunE:  runCleanup,
	}

	replayCmd := &cobra.Command{
		Use:   "replay <event.json>",
		Short: "Run the forwarder locally on a captured invocation and print the records",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}

	rootCmd.AddCommand(packageCmd, compileCmd, cleanupCmd, replayCmd)
	return rootCmd
}

// servicePaths resolves the service directory and the service definition path from flags.
func servicePaths(cmd *cobra.Command) (dir, configPath string, err error) {
	dir, err = cmd.Flags().GetString("service-path")
	if err != nil {
		return "", "", err
	}
	configPath, err = cmd.Flags().GetString("config")
	if err != nil {
		return "", "", err
	}
	return dir, resolve(dir, configPath), nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func runPackage(cmd *cobra.Command, args []string) error {
	dir, configPath, err := servicePaths(cmd)
	if err != nil {
		return err
	}
	svc, err := config.LoadService(configPath)
	if err != nil {
		return err
	}
	if err := svc.Validate(); err != nil {
		return err
	}

	source, err := cmd.Flags().GetString("identity-template")
	if err != nil {
		return err
	}
	coordinator := packaging.NewCoordinator(dir, svc)
	if source != "" {
		data, err := os.ReadFile(resolve(dir, source))
		if err != nil {
			return fmt.Errorf("reading identity template: %w", err)
		}
		coordinator.Source = string(data)
	}

	if err := coordinator.Prepare(); err != nil {
		return err
	}
	if err := coordinator.Emit(); err != nil {
		return err
	}
	return svc.Save(configPath)
}

func runCompile(cmd *cobra.Command, args []string) error {
	dir, configPath, err := servicePaths(cmd)
	if err != nil {
		return err
	}
	svc, err := config.LoadService(configPath)
	if err != nil {
		return err
	}

	templateFlag, err := cmd.Flags().GetString("template")
	if err != nil {
		return err
	}
	templatePath := resolve(dir, templateFlag)
	tmpl, err := cfn.LoadTemplate(templatePath)
	if err != nil {
		return err
	}

	result, err := cfn.Synthesize(tmpl.Resources, svc)
	if err != nil {
		return err
	}
	if err := tmpl.Save(templatePath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d subscription filter(s), %d resource(s) created, %d excluded, %d log group(s) set to %d day retention\n",
		len(tmpl.Resources.IDsOfType(cfn.TypeSubscriptionFilter)), len(result.Created), len(result.Excluded),
		result.RetentionAdjusted, common.RetentionInDays)
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	dir, configPath, err := servicePaths(cmd)
	if err != nil {
		return err
	}
	svc, err := config.LoadService(configPath)
	if err != nil {
		log.WithError(err).Debug("service definition not loaded, removing build directory only")
		return packaging.NewCoordinator(dir, &config.Service{}).Retire()
	}

	if err := packaging.NewCoordinator(dir, svc).Retire(); err != nil {
		return err
	}
	if _, ok := svc.Functions[common.ForwarderFunctionName]; !ok {
		return nil
	}
	delete(svc.Functions, common.ForwarderFunctionName)
	return svc.Save(configPath)
}

func runReplay(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var event events.CloudwatchLogsEvent
	if err := json.NewDecoder(in).Decode(&event); err != nil {
		return fmt.Errorf("parsing event: %w", err)
	}

	forwarder := loggroup.NewForwarder(sink.WriterOpener(cmd.OutOrStdout()))
	return forwarder.Handle(cmd.Context(), event)
}
