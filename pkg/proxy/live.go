package proxy

import (
	"context"

	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

type liveAccount struct {
	*account.Account
}

type liveVehicle struct {
	*vehicle.Vehicle
}

type liveCommand struct {
	*vehicle.Request
}

// Live adapts acct to the [Account] interface used by the proxy.
func Live(acct *account.Account) Account {
	return &liveAccount{acct}
}

func wrapVehicles(cars []*vehicle.Vehicle) []Vehicle {
	out := make([]Vehicle, 0, len(cars))
	for _, car := range cars {
		out = append(out, &liveVehicle{car})
	}
	return out
}

func (a *liveAccount) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	if cars := a.Vehicles(); len(cars) > 0 {
		return wrapVehicles(cars), nil
	}
	cars, err := a.Account.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	return wrapVehicles(cars), nil
}

func (a *liveAccount) GetVehicle(ctx context.Context, vin string) (Vehicle, error) {
	car, err := a.Account.GetVehicle(ctx, vin)
	if err != nil {
		return nil, err
	}
	return &liveVehicle{car}, nil
}

func (v *liveVehicle) Send(ctx context.Context, a *action.Action) (Command, error) {
	req, err := v.Execute(ctx, a)
	if err != nil || req == nil {
		return nil, err
	}
	return &liveCommand{req}, nil
}

func (c *liveCommand) RequestID() string {
	return c.ID
}
