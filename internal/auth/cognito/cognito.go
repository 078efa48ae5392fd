// Package cognito is an implementation of auth interface over AWS Cognito user pools.
package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/auth"
	"github.com/Decentr-net/agora/internal/entities"
)

var log = logrus.WithField("layer", "auth").WithField("package", "cognito")

// API is a subset of cognito client used by authenticator.
type API interface {
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput,
		optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
	GlobalSignOut(ctx context.Context, params *cognitoidentityprovider.GlobalSignOutInput,
		optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GlobalSignOutOutput, error)
	DescribeUserPool(ctx context.Context, params *cognitoidentityprovider.DescribeUserPoolInput,
		optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.DescribeUserPoolOutput, error)
}

type authenticator struct {
	api    API
	poolID string
}

// New creates authenticator with default aws config (env, ~/.aws/config).
func New(ctx context.Context, region, poolID string) (auth.Authenticator, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewWithAPI(cognitoidentityprovider.NewFromConfig(cfg), poolID), nil
}

// NewWithAPI creates authenticator over given client.
func NewWithAPI(api API, poolID string) auth.Authenticator {
	return authenticator{
		api:    api,
		poolID: poolID,
	}
}

func (a authenticator) Authenticate(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, auth.ErrUnauthorized
	}

	out, err := a.api.GetUser(ctx, &cognitoidentityprovider.GetUserInput{AccessToken: aws.String(token)})
	if err != nil {
		if isUnauthorized(err) {
			return nil, fmt.Errorf("%w: %s", auth.ErrUnauthorized, err.Error())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u := entities.User{
		ID: aws.ToString(out.Username),
	}

	for _, v := range out.UserAttributes {
		switch aws.ToString(v.Name) {
		case "sub":
			u.ID = aws.ToString(v.Value)
		case "name":
			u.Name = aws.ToString(v.Value)
		case "email":
			u.Email = aws.ToString(v.Value)
		case "picture":
			u.PhotoURL = aws.ToString(v.Value)
		}
	}

	if u.ID == "" {
		return nil, fmt.Errorf("%w: user without id", auth.ErrUnauthorized)
	}

	if u.Name == "" {
		u.Name = aws.ToString(out.Username)
	}

	return &u, nil
}

func (a authenticator) SignOut(ctx context.Context, token string) error {
	if _, err := a.api.GlobalSignOut(ctx, &cognitoidentityprovider.GlobalSignOutInput{AccessToken: aws.String(token)}); err != nil {
		if isUnauthorized(err) {
			return fmt.Errorf("%w: %s", auth.ErrUnauthorized, err.Error())
		}
		return fmt.Errorf("failed to sign out: %w", err)
	}

	return nil
}

func (a authenticator) Ping(ctx context.Context) error {
	if a.poolID == "" {
		log.Debug("user pool id is not set, skip ping")
		return nil
	}

	if _, err := a.api.DescribeUserPool(ctx, &cognitoidentityprovider.DescribeUserPoolInput{
		UserPoolId: aws.String(a.poolID),
	}); err != nil {
		return fmt.Errorf("failed to describe user pool: %w", err)
	}

	return nil
}

func isUnauthorized(err error) bool {
	var (
		notAuthorized *types.NotAuthorizedException
		notFound      *types.UserNotFoundException
	)

	return errors.As(err, &notAuthorized) || errors.As(err, &notFound)
}
