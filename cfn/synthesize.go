package cfn

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/config"
	"github.com/serverless-papertrail/log-forwarder/logger"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// FunctionDescriptor is one declared function of the service.
type FunctionDescriptor struct {
	LogicalName        string
	FullyQualifiedName string
	IsForwarder        bool
}

type planned struct {
	id  string
	res *Resource
}

// Result describes what a synthesis pass changed.
type Result struct {
	Created           []string
	Merged            []string
	Excluded          []string
	RetentionAdjusted int
}

// Descriptors enumerates the functions of svc in logical name order.
func Descriptors(svc *config.Service) []FunctionDescriptor {
	names := svc.FunctionNames()
	out := make([]FunctionDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, FunctionDescriptor{
			LogicalName:        name,
			FullyQualifiedName: svc.FunctionName(name),
			IsForwarder:        name == common.ForwarderFunctionName,
		})
	}
	return out
}

// Synthesize adds to set the forwarder log group, the invoke permission and
// one subscription filter per non-forwarder function, and sets the retention
// of every log group in set. The forwarder must already be registered in svc
// and compiled into set, otherwise nothing is written.
func Synthesize(set ResourceSet, svc *config.Service) (*Result, error) {
	if err := svc.Validate(); err != nil {
		return nil, err
	}

	forwarderID, err := resolveForwarder(set, svc)
	if err != nil {
		return nil, err
	}

	descriptors := Descriptors(svc)
	targets, excluded, err := subscriptionTargets(descriptors, svc.Excludes())
	if err != nil {
		return nil, err
	}

	forwarderArn := map[string]interface{}{"Fn::GetAtt": []interface{}{forwarderID, "Arn"}}
	logGroupID := LogGroupLogicalID(common.ForwarderFunctionName)

	plan := []planned{
		{logGroupID, &Resource{
			Type: TypeLogGroup,
			Properties: map[string]interface{}{
				"LogGroupName": lambdaLogGroupName(svc.FunctionName(common.ForwarderFunctionName)),
			},
		}},
		{PermissionLogicalID, &Resource{
			Type: TypePermission,
			Properties: map[string]interface{}{
				"FunctionName": forwarderArn,
				"Action":       "lambda:InvokeFunction",
				"Principal":    map[string]interface{}{"Fn::Sub": "logs.${AWS::Region}.amazonaws.com"},
				"SourceArn":    map[string]interface{}{"Fn::Sub": "arn:aws:logs:${AWS::Region}:${AWS::AccountId}:log-group:" + common.LambdaLogGroup + "/*"},
			},
			DependsOn: []string{forwarderID},
		}},
	}
	filters := make([]planned, 0, len(targets))
	for _, fn := range targets {
		dependsOn := []string{PermissionLogicalID, logGroupID}
		if src, ok := set[LogGroupLogicalID(fn.LogicalName)]; ok && src != nil && src.Type == TypeLogGroup {
			dependsOn = append(dependsOn, LogGroupLogicalID(fn.LogicalName))
		}
		filters = append(filters, planned{SubscriptionFilterLogicalID(fn.LogicalName), &Resource{
			Type: TypeSubscriptionFilter,
			Properties: map[string]interface{}{
				"DestinationArn": forwarderArn,
				"FilterPattern":  "",
				"LogGroupName":   lambdaLogGroupName(fn.FullyQualifiedName),
			},
			DependsOn: dependsOn,
		}})
	}

	for _, p := range append(append([]planned{}, plan...), filters...) {
		if existing, ok := set[p.id]; ok && existing != nil && existing.Type != p.res.Type {
			return nil, fmt.Errorf("%w: resource %s already exists with type %s, refusing to replace it with %s",
				common.ErrSynthesis, p.id, existing.Type, p.res.Type)
		}
	}

	result := &Result{Excluded: excluded}
	apply := func(steps []planned) {
		for _, p := range steps {
			// conflicts were ruled out above
			if created, _ := set.Merge(p.id, p.res); created {
				result.Created = append(result.Created, p.id)
			} else {
				result.Merged = append(result.Merged, p.id)
			}
		}
	}

	apply(plan)
	result.RetentionAdjusted = set.NormalizeRetention(common.RetentionInDays)
	apply(filters)

	log.WithFields(map[string]interface{}{
		"created":   len(result.Created),
		"merged":    len(result.Merged),
		"excluded":  len(result.Excluded),
		"retention": result.RetentionAdjusted,
	}).Info("synthesized log subscriptions")

	return result, nil
}

func resolveForwarder(set ResourceSet, svc *config.Service) (string, error) {
	if fn, ok := svc.Functions[common.ForwarderFunctionName]; !ok || fn == nil {
		return "", fmt.Errorf("%w: forwarder function %s is not registered in the service", common.ErrSynthesis, common.ForwarderFunctionName)
	}
	id := LambdaLogicalID(common.ForwarderFunctionName)
	res, ok := set[id]
	if !ok || res == nil {
		return "", fmt.Errorf("%w: forwarder function resource %s not found in template", common.ErrSynthesis, id)
	}
	if res.Type != TypeFunction {
		return "", fmt.Errorf("%w: resource %s has type %s, expected %s", common.ErrSynthesis, id, res.Type, TypeFunction)
	}
	return id, nil
}

func subscriptionTargets(descriptors []FunctionDescriptor, excludes []string) (targets []FunctionDescriptor, excluded []string, err error) {
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, nil, fmt.Errorf("%w: invalid exclude pattern %q", common.ErrConfiguration, pattern)
		}
	}
	for _, fn := range descriptors {
		if fn.IsForwarder {
			continue
		}
		if matchesAny(fn.LogicalName, excludes) {
			excluded = append(excluded, fn.LogicalName)
			continue
		}
		targets = append(targets, fn)
	}
	return targets, excluded, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func lambdaLogGroupName(functionName string) string {
	return common.LambdaLogGroup + "/" + functionName
}
