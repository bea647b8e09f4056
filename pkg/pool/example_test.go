package pool_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachpo/syncpool/pkg/coop"
	"github.com/coachpo/syncpool/pkg/objects"
	"github.com/coachpo/syncpool/pkg/pool"
)

func ExampleSync() {
	p, err := pool.NewSync(pool.Config[*objects.Generic]{
		Capacity:  1,
		OnRelease: (*objects.Generic).Reset,
	})
	if err != nil {
		panic(err)
	}

	obj, _ := p.Get()
	obj.Value = "hello"
	fmt.Println(obj)

	_ = p.Put(obj)
	if err := p.Put(objects.New()); errors.Is(err, pool.ErrCapacityReached) {
		fmt.Println("pool full")
	}

	reused, _ := p.Get()
	fmt.Println(reused == obj, reused)
	// Output:
	// Generic w/ value of '"hello"' of type string
	// pool full
	// true Generic w/ value of 'null' of type <nil>
}

func ExampleAsync() {
	s := coop.NewScheduler()
	p, err := pool.NewAsync(s, pool.Config[int]{Capacity: 3})
	if err != nil {
		panic(err)
	}

	s.Run(context.Background(), func(ctx context.Context) {
		for _, v := range []int{1, 2, 3} {
			_ = p.Put(ctx, v)
		}
		top, _ := p.Get(ctx)
		n, _ := p.Count(ctx)
		fmt.Println(top, n)
	})

	_, err = p.Count(context.Background())
	fmt.Println(errors.Is(err, pool.ErrIllegalAccess))
	// Output:
	// 3 2
	// true
}
